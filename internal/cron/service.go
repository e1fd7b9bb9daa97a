package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Names of the refresh jobs wired by the gateway.
const (
	JobPrices       = "prices"
	JobIndex        = "index"
	JobSessionSweep = "session-sweep"
)

// RunFunc does one refresh and returns a short result for the log.
type RunFunc func(ctx context.Context) (string, error)

// JobState is the persisted outcome of a job's last run.
type JobState struct {
	LastRunAt  time.Time `json:"lastRunAt,omitempty"`
	LastStatus string    `json:"lastStatus,omitempty"`
	LastError  string    `json:"lastError,omitempty"`
	Runs       int       `json:"runs"`
}

type Job struct {
	Name  string   `json:"name"`
	Expr  string   `json:"expr"`
	State JobState `json:"state"`
}

type job struct {
	Job
	run   RunFunc
	entry rcron.EntryID
}

// Service runs the periodic refresh jobs. Expressions carry a seconds field.
// A job never overlaps with itself.
type Service struct {
	statePath string
	parser    rcron.Parser

	mu     sync.Mutex
	jobs   map[string]*job
	cron   *rcron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func NewService(statePath string) *Service {
	return &Service{
		statePath: statePath,
		parser:    rcron.NewParser(rcron.Second | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor),
		jobs:      make(map[string]*job),
	}
}

// AddJob registers run under name. An empty expression disables the job and
// is not an error.
func (s *Service) AddJob(name, expr string, run RunFunc) error {
	if expr == "" {
		log.Printf("[cron] job %s disabled", name)
		return nil
	}
	if _, err := s.parser.Parse(expr); err != nil {
		return fmt.Errorf("parse schedule of %s (%s): %w", name, expr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{Job: Job{Name: name, Expr: expr}, run: run}
	s.jobs[name] = j
	if s.cron != nil {
		return s.registerJob(j)
	}
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	if err := s.load(); err != nil {
		log.Printf("[cron] warning: failed to load job state: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		cancel()
		return fmt.Errorf("cron already started")
	}
	s.ctx = runCtx
	s.cancel = cancel
	s.cron = rcron.New(
		rcron.WithParser(s.parser),
		rcron.WithChain(rcron.SkipIfStillRunning(rcron.DefaultLogger)),
	)
	for _, j := range s.jobs {
		if err := s.registerJob(j); err != nil {
			cancel()
			s.cron = nil
			return err
		}
	}
	s.cron.Start()
	log.Printf("[cron] started with %d jobs", len(s.jobs))

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Service) registerJob(j *job) error {
	name := j.Name
	id, err := s.cron.AddFunc(j.Expr, func() {
		s.execute(name)
	})
	if err != nil {
		return fmt.Errorf("register job %s (%s): %w", j.Name, j.Expr, err)
	}
	j.entry = id
	return nil
}

// RunNow runs the named job synchronously, outside its schedule.
func (s *Service) RunNow(name string) error {
	s.mu.Lock()
	_, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	return s.execute(name)
}

func (s *Service) execute(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	ctx := s.ctx
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	log.Printf("[cron] executing job %s", name)
	result, err := j.run(ctx)

	s.mu.Lock()
	j.State.LastRunAt = time.Now()
	j.State.Runs++
	if err != nil {
		j.State.LastStatus = "error"
		j.State.LastError = err.Error()
		log.Printf("[cron] job %s error: %v", name, err)
	} else {
		j.State.LastStatus = "ok"
		j.State.LastError = ""
		log.Printf("[cron] job %s result: %s", name, truncate(result, 100))
	}
	saveErr := s.save()
	s.mu.Unlock()

	if saveErr != nil {
		log.Printf("[cron] save job state: %v", saveErr)
	}
	return err
}

func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	if cancel != nil {
		cancel()
	}
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[cron] stop timeout waiting for running jobs")
	}
	log.Printf("[cron] stopped")
}

// ListJobs returns the registered jobs sorted by name.
func (s *Service) ListJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Job)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// LoadStates reads persisted job states without starting anything.
func LoadStates(statePath string) (map[string]JobState, error) {
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]JobState{}, nil
		}
		return nil, err
	}
	states := map[string]JobState{}
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("parse job state: %w", err)
	}
	return states, nil
}

func (s *Service) load() error {
	if s.statePath == "" {
		return nil
	}
	states, err := LoadStates(s.statePath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, st := range states {
		if j, ok := s.jobs[name]; ok {
			j.State = st
		}
	}
	return nil
}

// save must be called with s.mu held.
func (s *Service) save() error {
	if s.statePath == "" {
		return nil
	}
	states := make(map[string]JobState, len(s.jobs))
	for name, j := range s.jobs {
		states[name] = j.State
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.statePath, data, 0644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
