// Package plan はプラン生成のドメインロジックを提供する。
// キャッシュ確認、入力検証、ターゲット計算、アトミックな永続化、
// キャッシュ更新までの一連のオーケストレーションを担う。
package plan

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/fitplan/internal/calc"
	"github.com/hitoshi/fitplan/internal/model"
	"github.com/hitoshi/fitplan/internal/repository"
)

// PlanCache はプランスナップショットのキャッシュインターフェース。
// キャッシュ障害は致命的に扱わず、常にミスとして振る舞う実装でもよい。
type PlanCache interface {
	// Get はキャッシュ済みスナップショットを返す。ミスまたは期限切れはnil。
	Get(userID string) *model.PlanSnapshot
	// Put はスナップショットを上書き格納する。
	Put(userID string, snapshot *model.PlanSnapshot, ttl time.Duration)
	// Invalidate はエントリを即座に削除する。
	Invalidate(userID string)
}

// GenerationMetrics はプラン生成のメトリクス収集インターフェース。
type GenerationMetrics interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordGenerateSuccess()
	RecordGenerateFailure(reason string)
	RecordGenerateLatency(duration time.Duration)
}

// ServiceConfig はプラン生成サービスの設定パラメータ。
type ServiceConfig struct {
	// CacheTTL はキャッシュエントリの有効期間。週次再計算と揃える（デフォルト: 7日）。
	CacheTTL time.Duration
}

// DefaultServiceConfig はデフォルトのサービス設定を返す。
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		CacheTTL: 7 * 24 * time.Hour,
	}
}

// Service はプラン生成のサービス層。
// 依存はすべてコンストラクタで注入され、グローバル状態を持たない。
type Service struct {
	profileRepo repository.ProfileRepository
	planRepo    repository.PlanRepository
	cache       PlanCache
	metrics     GenerationMetrics
	config      ServiceConfig
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnilを許容する（収集なしで動作する）。
func NewService(
	profileRepo repository.ProfileRepository,
	planRepo repository.PlanRepository,
	cache PlanCache,
	metrics GenerationMetrics,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultServiceConfig().CacheTTL
	}
	return &Service{
		profileRepo: profileRepo,
		planRepo:    planRepo,
		cache:       cache,
		metrics:     metrics,
		config:      config,
		logger:      logger,
	}
}

// Generate は指定ユーザーのプランを生成する。
//
// forceRecompute=falseの場合はまずキャッシュを確認し、有効なエントリが
// あればDBアクセスなしで即座に返す（低レイテンシの主経路）。
// キャッシュミス時は永続ストアの既存アクティブプランを確認し、
// CacheTTLより新しければ再計算せずにそのまま返す（Recomputed=false）。
//
// それ以外の場合はバイオメトリクスを検証のうえターゲットを計算し、
// 既存アクティブプランの置き換えと新規プランの挿入を単一トランザクションで
// 実行する（Recomputed=true）。成功した再計算につきDBトランザクションと
// キャッシュ書き込みはそれぞれ1回のみ。
//
// 永続化失敗はPersistenceErrorとして呼び出し側に伝播し、本メソッド内では
// 再試行しない（再試行ポリシーは呼び出し側の責務）。
func (s *Service) Generate(ctx context.Context, userID string, forceRecompute bool) (*model.PlanSnapshot, error) {
	start := time.Now()

	if !forceRecompute {
		if cached := s.cache.Get(userID); cached != nil {
			s.recordCacheHit()
			result := *cached
			result.Recomputed = false
			return &result, nil
		}
		s.recordCacheMiss()

		// キャッシュは冷えているが、十分新しい永続プランがあれば
		// 再計算せずキャッシュを温め直して返す。
		existing, err := s.planRepo.FindActiveByUserID(ctx, userID)
		if err != nil {
			s.logger.Error("アクティブプランの取得に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			s.recordFailure(model.ErrCodePersistence)
			return nil, model.NewPersistenceError()
		}
		if existing != nil && time.Since(existing.CreatedAt) < s.config.CacheTTL {
			s.cache.Put(userID, existing, s.config.CacheTTL)
			result := *existing
			result.Recomputed = false
			s.recordSuccess(start)
			return &result, nil
		}
	}

	// バイオメトリクスの読み込みと検証。計算機は検証済み入力のみを受け取る。
	biometrics, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("プロフィールの取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		s.recordFailure(model.ErrCodePersistence)
		return nil, model.NewPersistenceError()
	}
	if biometrics == nil {
		s.recordFailure(model.ErrCodeProfileNotFound)
		return nil, model.NewProfileNotFoundError(userID)
	}
	if apiErr := biometrics.Validate(); apiErr != nil {
		// 生のバイオメトリクス値はログに残さない
		s.logger.Info("プロフィールが計算条件を満たしていません",
			slog.String("user_id", userID),
			slog.String("code", apiErr.Code),
		)
		s.recordFailure(apiErr.Code)
		return nil, apiErr
	}

	now := time.Now()
	targets := calc.Targets(biometrics)
	snapshot := &model.PlanSnapshot{
		ID:         uuid.NewString(),
		UserID:     userID,
		Targets:    targets,
		Projection: calc.Projection(biometrics, targets, now),
		WhyItWorks: calc.Explain(biometrics, targets),
		Status:     model.PlanStatusActive,
		CreatedAt:  now,
		Recomputed: true,
	}

	// 既存アクティブプランの置き換えと新規挿入を単一トランザクションで実行
	if err := s.planRepo.CreateSuperseding(ctx, snapshot); err != nil {
		s.logger.Error("プランの永続化に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		s.recordFailure(model.ErrCodePersistence)
		return nil, model.NewPersistenceError()
	}

	s.cache.Put(userID, snapshot, s.config.CacheTTL)

	s.logger.Info("プランを生成しました",
		slog.String("user_id", userID),
		slog.String("plan_id", snapshot.ID),
		slog.Bool("force_recompute", forceRecompute),
	)
	s.recordSuccess(start)

	return snapshot, nil
}

// GetActive は指定ユーザーのアクティブプランを取得する。
// キャッシュを優先し、ミス時は永続ストアから読み込む。
// プランが存在しない場合はPlanNotFoundエラーを返す。
func (s *Service) GetActive(ctx context.Context, userID string) (*model.PlanSnapshot, error) {
	if cached := s.cache.Get(userID); cached != nil {
		s.recordCacheHit()
		result := *cached
		result.Recomputed = false
		return &result, nil
	}
	s.recordCacheMiss()

	snapshot, err := s.planRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("アクティブプランの取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewPersistenceError()
	}
	if snapshot == nil {
		return nil, model.NewPlanNotFoundError(userID)
	}

	s.cache.Put(userID, snapshot, s.config.CacheTTL)
	return snapshot, nil
}

// Invalidate は指定ユーザーのキャッシュエントリを削除する。
// 体重や目標などバイオメトリクスに影響する更新が外部コンポーネントで
// 発生した際に呼ばれ、次回の生成要求で再計算を強制する。
func (s *Service) Invalidate(userID string) {
	s.cache.Invalidate(userID)
	s.logger.Info("プランキャッシュを無効化しました",
		slog.String("user_id", userID),
	)
}

func (s *Service) recordCacheHit() {
	if s.metrics != nil {
		s.metrics.RecordCacheHit()
	}
}

func (s *Service) recordCacheMiss() {
	if s.metrics != nil {
		s.metrics.RecordCacheMiss()
	}
}

func (s *Service) recordSuccess(start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordGenerateSuccess()
		s.metrics.RecordGenerateLatency(time.Since(start))
	}
}

func (s *Service) recordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.RecordGenerateFailure(reason)
	}
}
