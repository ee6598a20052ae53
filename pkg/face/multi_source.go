package face

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// MultiSource 同时运行多个帧来源，所有帧汇入同一个 emit
// 任一来源出错时取消其余来源并返回该错误
type MultiSource []FrameSource

// Run 实现 FrameSource
func (m MultiSource) Run(ctx context.Context, emit func(Frame)) error {
	var sources []FrameSource
	for _, s := range m {
		if s != nil {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		return ErrNoSource
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sources {
		g.Go(func() error {
			return s.Run(gctx, emit)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Optional 包装一个可以失败的来源：出错时调用 onErr 后正常返回，
// 放进 MultiSource 时不会取消其他来源
func Optional(src FrameSource, onErr func(error)) FrameSource {
	return FrameSourceFunc(func(ctx context.Context, emit func(Frame)) error {
		err := src.Run(ctx, emit)
		if err == nil || ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if onErr != nil {
			onErr(err)
		}
		return nil
	})
}
