package game

// scheduledTask 延迟执行的任务
type scheduledTask struct {
	id         int
	remaining  float64 // 剩余秒数
	generation uint64  // 安排任务时引擎的代数
	run        func()
}

// Scheduler 由游戏循环推进的延迟任务队列
// 任务记录安排时的代数，到期时代数已变化则直接丢弃
// 不是并发安全的，只能在游戏 goroutine 使用
type Scheduler struct {
	current func() uint64
	tasks   []scheduledTask
	nextID  int
}

// NewScheduler 创建调度器，current 返回引擎当前代数
func NewScheduler(current func() uint64) *Scheduler {
	return &Scheduler{current: current}
}

// Schedule 在 delay 秒后执行 run，返回任务 ID
func (s *Scheduler) Schedule(delay float64, run func()) int {
	s.nextID++
	s.tasks = append(s.tasks, scheduledTask{
		id:         s.nextID,
		remaining:  delay,
		generation: s.current(),
		run:        run,
	})
	return s.nextID
}

// Cancel 取消指定任务
func (s *Scheduler) Cancel(id int) {
	for i, t := range s.tasks {
		if t.id == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

// CancelAll 取消全部任务
func (s *Scheduler) CancelAll() {
	s.tasks = nil
}

// Pending 未执行的任务数（包含已过期但尚未到期的任务）
func (s *Scheduler) Pending() int {
	return len(s.tasks)
}

// Advance 推进 dt 秒，按安排顺序执行到期且未过期的任务，返回执行的任务数
func (s *Scheduler) Advance(dt float64) int {
	var due []scheduledTask
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		t.remaining -= dt
		if t.remaining <= 0 {
			due = append(due, t)
		} else {
			kept = append(kept, t)
		}
	}
	s.tasks = kept

	ran := 0
	for _, t := range due {
		// 任务执行可能改变代数，每个任务单独检查
		if t.generation != s.current() {
			continue
		}
		t.run()
		ran++
	}
	return ran
}
