package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
)

// 任务名
const (
	FetchNews          = "fetchNews"
	UpdateEmbeddings   = "updateEmbeddings"
	EnrichArticles     = "enrichArticles"
	CleanupOldArticles = "cleanupOldArticles"
	DailyAnalytics     = "dailyAnalytics"
)

// Job 一个可按名称手动触发的定时任务
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]Job
	initial string

	ctx    context.Context
	cancel context.CancelFunc
}

// New 注册所有任务；spec 为空的任务只能手动触发。initial 为启动后延迟执行的首个任务
func New(jobs []Job, initial string) (*Scheduler, error) {
	logger := cron.PrintfLogger(slogPrintf{})
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    c,
		jobs:    make(map[string]Job, len(jobs)),
		initial: initial,
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, j := range jobs {
		if _, dup := s.jobs[j.Name]; dup {
			cancel()
			return nil, fmt.Errorf("duplicate job %q", j.Name)
		}
		s.jobs[j.Name] = j
		if j.Spec == "" {
			continue
		}
		job := j
		if _, err := c.AddFunc(job.Spec, func() { s.run(s.ctx, job) }); err != nil {
			cancel()
			return nil, fmt.Errorf("job %s: invalid spec %q: %w", job.Name, job.Spec, err)
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与用户首次打开页面的请求争抢资源，首屏加载更快
	const startupDelay = 15 * time.Second
	if job, ok := s.jobs[s.initial]; ok {
		time.AfterFunc(startupDelay, func() {
			if s.ctx.Err() == nil {
				s.run(s.ctx, job)
			}
		})
	}
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// Names 已注册的任务名，按字母序
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for n := range s.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunOnce 同步执行指定任务，方便手动触发
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panic: %v", job.Name, r)
			slog.Error("scheduler: job panic", "job", job.Name, "panic", r)
		}
	}()

	start := time.Now()
	slog.Info("scheduler: job start", "job", job.Name)
	if err = job.Run(ctx); err != nil {
		slog.Error("scheduler: job failed", "job", job.Name, "elapsed", time.Since(start), "err", err)
		return err
	}
	slog.Info("scheduler: job done", "job", job.Name, "elapsed", time.Since(start))
	return nil
}

// slogPrintf 把 cron 的日志转到 slog
type slogPrintf struct{}

func (slogPrintf) Printf(format string, args ...any) {
	slog.Warn(fmt.Sprintf(format, args...), "component", "cron")
}
