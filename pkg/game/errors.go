package game

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition 当前阶段不允许该操作
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNoCustomers 关卡档位范围内没有顾客
	ErrNoCustomers = errors.New("no customers for level")
	// ErrNoSequences 没有可用的对话序列
	ErrNoSequences = errors.New("no sequences available")
	// ErrUnknownAction 选择的操作不在候选列表中
	ErrUnknownAction = errors.New("action is not among the choices")
)

// TransitionError 在不允许的阶段调用状态转换
type TransitionError struct {
	Op    string
	Phase Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s not allowed in phase %s", e.Op, e.Phase)
}

// Unwrap 使 errors.Is(err, ErrInvalidTransition) 成立
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
