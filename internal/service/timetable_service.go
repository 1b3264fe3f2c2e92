package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sujith-eag/timetable-builder/config"
	"github.com/sujith-eag/timetable-builder/internal/constraint"
	"github.com/sujith-eag/timetable-builder/internal/dto"
	"github.com/sujith-eag/timetable-builder/internal/engine"
	"github.com/sujith-eag/timetable-builder/internal/enrich"
	"github.com/sujith-eag/timetable-builder/internal/model"
	"github.com/sujith-eag/timetable-builder/internal/repository"
	"github.com/sujith-eag/timetable-builder/internal/validator"
	"github.com/sujith-eag/timetable-builder/pkg/redis"
)

// ── 排课模块业务错误 ──

var (
	ErrRunNotFound          = errors.New("运行记录不存在")
	ErrInvalidSolveOptions  = errors.New("求解参数不合法")
	ErrRunCorrupted         = errors.New("运行记录数据损坏")
	ErrUnknownSoftWeightKey = errors.New("未知的软约束权重")
)

// ResultCache 求解结果缓存（按问题指纹）
// 未命中时返回 redis.ErrCacheMiss
type ResultCache interface {
	GetResult(ctx context.Context, fingerprint string) ([]byte, error)
	SetResult(ctx context.Context, fingerprint string, payload []byte, ttl time.Duration) error
}

// ── TimetableService 接口 ──────────────────────────────────
//
// 流程：
//   - Solve：构建实例 → 指纹查缓存 → 引擎（单次或组合）→ 校验 → 富化 → 持久化 → 写缓存
//   - Validate：外部落位 → 校验 → （合法时）富化 → 持久化
//   - Enrich：外部落位 → 校验 → 富化，不持久化
//
// 超时结果不写缓存：同一问题换一台机器可能在时限内得到完整解。
// ─────────────────────────────────────────────────────────────

// TimetableService 排课模块业务接口
type TimetableService interface {
	// Solve 求解并保存运行记录
	Solve(ctx context.Context, req *dto.SolveRequest, caller string) (*dto.RunResponse, error)
	// Validate 校验外部提供的课表并保存运行记录
	Validate(ctx context.Context, req *dto.ScheduleRequest, caller string) (*dto.RunResponse, error)
	// Enrich 校验并富化外部提供的课表
	Enrich(ctx context.Context, req *dto.ScheduleRequest) (*dto.EnrichResponse, error)
	// GetRun 查询运行记录详情
	GetRun(ctx context.Context, runID string) (*dto.RunResponse, error)
	// ListRuns 分页查询运行记录
	ListRuns(ctx context.Context, req *dto.RunListRequest) ([]dto.RunBrief, int64, error)
}

type timetableService struct {
	cfg      *config.Config
	repo     *repository.Repository
	cache    ResultCache
	registry func() *constraint.Registry
	logger   *zap.Logger
}

// NewTimetableService 创建 TimetableService 实例
// cache 为 nil 时不使用结果缓存
func NewTimetableService(cfg *config.Config, repo *repository.Repository, cache ResultCache, logger *zap.Logger) TimetableService {
	return &timetableService{
		cfg:      cfg,
		repo:     repo,
		cache:    cache,
		registry: constraint.DefaultRegistry,
		logger:   logger,
	}
}

// ════════════════════════════════════════════════════════════
// Solve — 求解
// ════════════════════════════════════════════════════════════

func (s *timetableService) Solve(ctx context.Context, req *dto.SolveRequest, caller string) (*dto.RunResponse, error) {
	// 1. 构建问题实例（结构与引用完整性校验）
	inst, err := model.NewInstance(req.Problem)
	if err != nil {
		return nil, err
	}

	// 2. 合并引擎参数
	reg := s.registry()
	ecfg, pcfg, err := s.engineConfig(reg, req.Options)
	if err != nil {
		return nil, err
	}

	// 3. 按指纹查缓存
	fp, err := fingerprint(req.Problem, ecfg, pcfg)
	if err != nil {
		return nil, err
	}
	useCache := s.cache != nil && s.cfg.Cache.Enabled && (req.Options == nil || !req.Options.NoCache)
	if useCache {
		if resp, ok := s.cached(ctx, fp); ok {
			return resp, nil
		}
	}

	// 4. 求解
	res, err := engine.SolvePortfolio(ctx, inst, reg, ecfg, pcfg)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidConfig) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSolveOptions, err)
		}
		s.logger.Error("求解失败", zap.Error(err))
		return nil, err
	}

	// 5. 校验并在合法且完整时富化
	sched := validator.Certify(reg, res.Best())
	if res.Status == engine.StatusComplete && sched.Status() == model.StatusValid {
		if enriched, err := enrich.Enrich(reg, sched); err == nil {
			sched = enriched
		} else {
			s.logger.Warn("富化失败", zap.Error(err))
		}
	}

	// 6. 持久化
	run, err := s.newRun(model.RunSolve, req.Problem, sched, caller)
	if err != nil {
		return nil, err
	}
	run.Fingerprint = fp
	run.Status = string(res.Status)
	run.Penalty = res.Penalty
	run.Backtracks = res.Stats.Backtracks
	run.Seed = res.Stats.Seed
	run.ElapsedMS = res.Stats.Elapsed.Milliseconds()
	run.Reason = res.Reason
	if len(res.Unplaced) > 0 {
		b, err := json.Marshal(toUnplacedResponses(res.Unplaced))
		if err != nil {
			return nil, err
		}
		run.Unplaced = string(b)
	}
	if err := s.repo.Run.Create(ctx, run); err != nil {
		s.logger.Error("保存运行记录失败", zap.String("fingerprint", fp), zap.Error(err))
		return nil, fmt.Errorf("保存运行记录失败: %w", err)
	}

	resp, err := toRunResponse(run, periodClock(req.Problem))
	if err != nil {
		return nil, err
	}

	s.logger.Info("求解完成",
		zap.String("run_id", run.RunID),
		zap.String("status", run.Status),
		zap.String("validation", run.Validation),
		zap.Int("placed", run.Placed),
		zap.Int("sessions", run.Sessions),
	)

	// 7. 写缓存（超时结果不缓存）
	if useCache && res.Status != engine.StatusTimeout {
		s.store(ctx, fp, resp)
	}
	return resp, nil
}

// engineConfig 以服务端配置为基础，叠加请求中的覆盖项
func (s *timetableService) engineConfig(reg *constraint.Registry, opts *dto.SolveOptions) (engine.Config, engine.PortfolioConfig, error) {
	ecfg := s.cfg.Solver.EngineConfig()
	pcfg := s.cfg.Solver.PortfolioConfig()
	ecfg.Logger = s.logger
	if s.cfg.Log.Trace {
		ecfg.Tracer = engine.NewLogTracer(s.logger)
	}

	if opts != nil {
		if opts.MaxBacktracks != nil {
			ecfg.MaxBacktracks = *opts.MaxBacktracks
		}
		if opts.WallClockLimitMS != nil {
			ecfg.WallClockLimit = time.Duration(*opts.WallClockLimitMS) * time.Millisecond
		}
		if opts.RandomSeed != nil {
			ecfg.RandomSeed = *opts.RandomSeed
		}
		if opts.Improve != nil {
			ecfg.Improve = *opts.Improve
		}
		for id, w := range opts.SoftWeights {
			if !reg.Has(id) {
				return ecfg, pcfg, fmt.Errorf("%w: %s", ErrUnknownSoftWeightKey, id)
			}
			if ecfg.SoftConstraintWeight == nil {
				ecfg.SoftConstraintWeight = make(map[string]float64)
			}
			ecfg.SoftConstraintWeight[id] = w
		}
		if opts.Attempts > 0 {
			pcfg.Attempts = opts.Attempts
		}
		if opts.Strategy != "" {
			pcfg.Strategy = engine.Strategy(opts.Strategy)
		}
	}

	if err := ecfg.Validate(); err != nil {
		return ecfg, pcfg, fmt.Errorf("%w: %v", ErrInvalidSolveOptions, err)
	}
	return ecfg, pcfg, nil
}

// cached 读取缓存；缓存故障只记录日志，不影响求解
func (s *timetableService) cached(ctx context.Context, fp string) (*dto.RunResponse, bool) {
	payload, err := s.cache.GetResult(ctx, fp)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("读取求解缓存失败", zap.String("fingerprint", fp), zap.Error(err))
		}
		return nil, false
	}
	var resp dto.RunResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		s.logger.Warn("求解缓存内容无法解析", zap.String("fingerprint", fp), zap.Error(err))
		return nil, false
	}
	resp.Cached = true
	return &resp, true
}

func (s *timetableService) store(ctx context.Context, fp string, resp *dto.RunResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("序列化求解结果失败", zap.Error(err))
		return
	}
	if err := s.cache.SetResult(ctx, fp, payload, s.cfg.Cache.TTL); err != nil {
		s.logger.Warn("写入求解缓存失败", zap.String("fingerprint", fp), zap.Error(err))
	}
}

// ════════════════════════════════════════════════════════════
// Validate / Enrich — 外部课表
// ════════════════════════════════════════════════════════════

func (s *timetableService) Validate(ctx context.Context, req *dto.ScheduleRequest, caller string) (*dto.RunResponse, error) {
	reg := s.registry()
	sched, err := s.certify(reg, req)
	if err != nil {
		return nil, err
	}
	if sched.Status() == model.StatusValid {
		if enriched, err := enrich.Enrich(reg, sched); err == nil {
			sched = enriched
		}
	}

	run, err := s.newRun(model.RunValidate, req.Problem, sched, caller)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Run.Create(ctx, run); err != nil {
		s.logger.Error("保存校验记录失败", zap.Error(err))
		return nil, fmt.Errorf("保存运行记录失败: %w", err)
	}
	return toRunResponse(run, periodClock(req.Problem))
}

func (s *timetableService) Enrich(_ context.Context, req *dto.ScheduleRequest) (*dto.EnrichResponse, error) {
	reg := s.registry()
	sched, err := s.certify(reg, req)
	if err != nil {
		return nil, err
	}
	enriched, err := enrich.Enrich(reg, sched)
	if err != nil {
		return nil, err
	}
	return &dto.EnrichResponse{
		Validation: string(enriched.Status()),
		Enrichment: enriched.Enrichment(),
	}, nil
}

func (s *timetableService) certify(reg *constraint.Registry, req *dto.ScheduleRequest) (*model.Schedule, error) {
	inst, err := model.NewInstance(req.Problem)
	if err != nil {
		return nil, err
	}
	sched, err := model.NewSchedule(inst, req.Placements)
	if err != nil {
		return nil, err
	}
	return validator.Certify(reg, sched), nil
}

// ════════════════════════════════════════════════════════════
// 运行记录查询
// ════════════════════════════════════════════════════════════

func (s *timetableService) GetRun(ctx context.Context, runID string) (*dto.RunResponse, error) {
	run, err := s.repo.Run.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, ErrRunNotFound
		}
		s.logger.Error("查询运行记录失败", zap.String("run_id", runID), zap.Error(err))
		return nil, err
	}
	in, err := decodeProblem(run)
	if err != nil {
		return nil, err
	}
	return toRunResponse(run, periodClock(in))
}

func (s *timetableService) ListRuns(ctx context.Context, req *dto.RunListRequest) ([]dto.RunBrief, int64, error) {
	filter := repository.RunFilter{
		Kind:       model.RunKind(req.Kind),
		Status:     req.Status,
		Validation: req.Validation,
	}
	runs, total, err := s.repo.Run.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询运行记录列表失败", zap.Error(err))
		return nil, 0, err
	}

	list := make([]dto.RunBrief, 0, len(runs))
	for _, r := range runs {
		list = append(list, dto.RunBrief{
			RunID:       r.RunID,
			Kind:        string(r.Kind),
			Fingerprint: r.Fingerprint,
			Status:      r.Status,
			Validation:  r.Validation,
			Sessions:    r.Sessions,
			Placed:      r.Placed,
			Penalty:     r.Penalty,
			CreatedBy:   r.CreatedBy,
			CreatedAt:   r.CreatedAt.Format(time.RFC3339),
		})
	}
	return list, total, nil
}

// ── 辅助函数 ──

// newRun 由课表构建运行记录（不含求解统计）
func (s *timetableService) newRun(kind model.RunKind, problem model.Input, sched *model.Schedule, caller string) (*model.ScheduleRun, error) {
	problemJSON, err := json.Marshal(problem)
	if err != nil {
		return nil, err
	}
	inst := sched.Instance()
	run := &model.ScheduleRun{
		Kind:       kind,
		Validation: string(sched.Status()),
		Sessions:   len(inst.Sessions()),
		Placed:     len(sched.Placements()),
		Problem:    string(problemJSON),
		Entries:    model.NewRunEntries(inst, sched.Placements()),
		BaseModel:  model.BaseModel{CreatedBy: caller},
	}
	if r := sched.Report(); r != nil {
		run.Violations = model.NewRunViolations(r.Violations)
	}
	if e := sched.Enrichment(); e != nil {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		run.Enrichment = string(b)
	}
	return run, nil
}

// fingerprint 问题与生效引擎参数的 SHA-256 摘要
func fingerprint(problem model.Input, ecfg engine.Config, pcfg engine.PortfolioConfig) (string, error) {
	weights := make(map[string]float64, len(ecfg.SoftConstraintWeight))
	for k, v := range ecfg.SoftConstraintWeight {
		weights[k] = v
	}
	payload, err := json.Marshal(struct {
		Problem        model.Input        `json:"problem"`
		MaxBacktracks  int                `json:"max_backtracks"`
		WallClockLimit time.Duration      `json:"wall_clock_limit"`
		RandomSeed     int64              `json:"random_seed"`
		Improve        bool               `json:"improve"`
		Weights        map[string]float64 `json:"weights"`
		Attempts       int                `json:"attempts"`
		Strategy       engine.Strategy    `json:"strategy"`
	}{problem, ecfg.MaxBacktracks, ecfg.WallClockLimit, ecfg.RandomSeed, ecfg.Improve, weights, pcfg.Attempts, pcfg.Strategy})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func decodeProblem(run *model.ScheduleRun) (model.Input, error) {
	var in model.Input
	if err := json.Unmarshal([]byte(run.Problem), &in); err != nil {
		return in, fmt.Errorf("%w: problem: %v", ErrRunCorrupted, err)
	}
	return in, nil
}

// periodClock 节次号 → 时钟标签
func periodClock(in model.Input) map[int]model.PeriodLabel {
	out := make(map[int]model.PeriodLabel, len(in.Periods))
	for _, p := range in.Periods {
		out[p.Index] = p
	}
	return out
}

func toUnplacedResponses(us []engine.Unplaced) []dto.UnplacedResponse {
	out := make([]dto.UnplacedResponse, 0, len(us))
	for _, u := range us {
		r := dto.UnplacedResponse{SessionID: u.SessionID, BlockedBy: u.BlockedBy}
		for _, c := range u.Conflicts {
			r.Conflicts = append(r.Conflicts, dto.ConflictResponse{ConstraintID: c.ConstraintID, Candidates: c.Candidates})
		}
		out = append(out, r)
	}
	return out
}

func toRunResponse(run *model.ScheduleRun, clock map[int]model.PeriodLabel) (*dto.RunResponse, error) {
	resp := &dto.RunResponse{
		RunID:      run.RunID,
		Kind:       string(run.Kind),
		Status:     run.Status,
		Validation: run.Validation,
		Sessions:   run.Sessions,
		Placed:     run.Placed,
		Penalty:    run.Penalty,
		Backtracks: run.Backtracks,
		Seed:       run.Seed,
		ElapsedMS:  run.ElapsedMS,
		Reason:     run.Reason,
		Entries:    make([]dto.EntryResponse, 0, len(run.Entries)),
		Violations: make([]model.Violation, 0, len(run.Violations)),
		CreatedBy:  run.CreatedBy,
		CreatedAt:  run.CreatedAt.Format(time.RFC3339),
	}

	entries := append([]model.RunEntry(nil), run.Entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].SessionID < entries[j].SessionID })
	for _, e := range entries {
		er := dto.EntryResponse{
			SessionID:    e.SessionID,
			CourseID:     e.CourseID,
			Title:        e.Title,
			Day:          e.Day,
			Period:       e.Period,
			Periods:      []int(e.Periods),
			RoomID:       e.RoomID,
			InstructorID: e.InstructorID,
			GroupIDs:     []string(e.GroupIDs),
		}
		if len(e.Periods) > 0 {
			er.StartTime = clock[e.Periods[0]].Start
			er.EndTime = clock[e.Periods[len(e.Periods)-1]].End
		}
		resp.Entries = append(resp.Entries, er)
	}

	for _, v := range run.Violations {
		var slot *model.TimeSlot
		if v.Day != nil && v.Period != nil {
			slot = &model.TimeSlot{Day: *v.Day, Period: *v.Period}
		}
		resp.Violations = append(resp.Violations, model.Violation{
			ConstraintID: v.ConstraintID,
			SessionIDs:   []string(v.SessionIDs),
			Slot:         slot,
			Message:      v.Message,
		})
	}

	if run.Unplaced != "" {
		if err := json.Unmarshal([]byte(run.Unplaced), &resp.Unplaced); err != nil {
			return nil, fmt.Errorf("%w: unplaced: %v", ErrRunCorrupted, err)
		}
	}
	if run.Enrichment != "" {
		var e model.Enrichment
		if err := json.Unmarshal([]byte(run.Enrichment), &e); err != nil {
			return nil, fmt.Errorf("%w: enrichment: %v", ErrRunCorrupted, err)
		}
		resp.Enrichment = &e
	}
	return resp, nil
}
