/**
 * @description
 * This file contains the core business logic for the bounty-service. The `Service`
 * struct orchestrates the bounty registry and shares its dependencies with the
 * moderation, claim, payment and reconciliation code in the sibling files of
 * this package.
 *
 * Key features:
 * - Bounty registry: creation, lookups, ranked listings and per-status stats.
 * - Fire-and-forget notifications: publish failures are logged and swallowed,
 *   never failing the triggering operation.
 * - Admin fan-out with bounded concurrency and per-recipient error capture.
 *
 * @dependencies
 * - context, errors, fmt, log, sync, time: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/pixclient, pkg/walletclient, pkg/rateclient, pkg/rabbitmq: External services.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/internal/store"
	"github.com/bountypix/bounty-service/pkg/pixclient"
	"github.com/bountypix/bounty-service/pkg/rabbitmq"
	"github.com/bountypix/bounty-service/pkg/rateclient"
	"github.com/bountypix/bounty-service/pkg/walletclient"
)

// adminFanOutLimit bounds how many admin notifications are published at once.
const adminFanOutLimit = 4

var (
	// ErrNotFundable is returned when a payment is opened against a bounty that
	// is not in a fundable status.
	ErrNotFundable = errors.New("bounty is not open for funding")
	// ErrInvalidAsset is returned for an unsupported on-chain asset kind.
	ErrInvalidAsset = errors.New("unsupported asset kind")
	// ErrAllocation is returned when deposit-address derivation fails.
	ErrAllocation = errors.New("deposit address allocation failed")
)

// PixProcessor is the slice of the PIX processor client the service depends on.
type PixProcessor interface {
	CreateCharge(ctx context.Context, payload pixclient.CreateChargeRequest) (*pixclient.CreateChargeResponse, error)
}

// AddressDeriver is the slice of the wallet-derivation client the service depends on.
type AddressDeriver interface {
	DeriveAddress(ctx context.Context, index int64) (*walletclient.DeriveAddressResponse, error)
}

// RateConverter is the slice of the price-conversion client the service depends on.
type RateConverter interface {
	ConvertToFiat(ctx context.Context, assetKind string, nativeAmount int64) (int64, error)
}

// Service provides the core business logic for the bounty funding engine.
type Service struct {
	repo          store.Repository
	pixClient     PixProcessor
	walletClient  AddressDeriver
	rateClient    RateConverter
	eventProducer rabbitmq.Publisher
	sessions      *store.ModerationSessionStore

	adminUserIDs      []string
	pixFeeCents       int64
	largeContribCents int64
	walletIndexOffset int64
}

// ServiceParams bundles the dependencies and tunables for NewService.
type ServiceParams struct {
	Repo          store.Repository
	PixClient     PixProcessor
	WalletClient  AddressDeriver
	RateClient    RateConverter
	EventProducer rabbitmq.Publisher
	Sessions      *store.ModerationSessionStore

	AdminUserIDs           []string
	PixProcessingFeeCents  int64
	LargeContributionCents int64
	WalletIndexOffset      int64
}

// NewService creates a new bounty service instance.
func NewService(params ServiceParams) *Service {
	if params.EventProducer == nil {
		params.EventProducer = &rabbitmq.EventProducerFallback{}
	}
	return &Service{
		repo:              params.Repo,
		pixClient:         params.PixClient,
		walletClient:      params.WalletClient,
		rateClient:        params.RateClient,
		eventProducer:     params.EventProducer,
		sessions:          params.Sessions,
		adminUserIDs:      params.AdminUserIDs,
		pixFeeCents:       params.PixProcessingFeeCents,
		largeContribCents: params.LargeContributionCents,
		walletIndexOffset: params.WalletIndexOffset,
	}
}

// CreateBounty registers a new feature request in status pending_review and
// alerts the admins that it is waiting for moderation. Title and description
// length limits are the caller's responsibility; this method persists whatever
// it is handed.
func (s *Service) CreateBounty(ctx context.Context, creatorID, creatorDisplayName string, req domain.CreateBountyRequest) (*domain.Bounty, error) {
	bounty := &domain.Bounty{
		Title:              req.Title,
		Description:        req.Description,
		CreatorID:          creatorID,
		CreatorDisplayName: creatorDisplayName,
		Status:             domain.BountyStatusPendingReview,
	}

	created, err := s.repo.CreateBounty(ctx, bounty)
	if err != nil {
		return nil, fmt.Errorf("failed to create bounty: %w", err)
	}

	log.Printf("level=info component=registry msg=\"bounty created\" bounty_id=%d creator_id=%s", created.ID, creatorID)

	s.notifyAdmins(ctx, fmt.Sprintf("New bounty #%d %q by %s is waiting for review.", created.ID, created.Title, creatorDisplayName))

	return created, nil
}

// GetBounty retrieves a single bounty by id.
func (s *Service) GetBounty(ctx context.Context, bountyID int64) (*domain.Bounty, error) {
	return s.repo.FindBountyByID(ctx, bountyID)
}

// ListBounties returns bounties in one status ordered by the ranking contract:
// ranking ascending, confirmed total descending, creation time ascending.
func (s *Service) ListBounties(ctx context.Context, status string, opts domain.BountyListOptions) ([]domain.Bounty, error) {
	return s.repo.ListBountiesByStatus(ctx, status, opts)
}

// GetStats aggregates funding figures per lifecycle status. Every known status
// is reported; ones with no rows come back zero-filled.
func (s *Service) GetStats(ctx context.Context) (*domain.BountyStats, error) {
	byStatus, err := s.repo.GetBountyStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load bounty stats: %w", err)
	}

	stats := &domain.BountyStats{
		Statuses: make([]domain.BountyStatusStats, 0, len(domain.AllBountyStatuses)),
	}
	for _, status := range domain.AllBountyStatuses {
		row, ok := byStatus[status]
		if !ok {
			row = domain.BountyStatusStats{Status: status}
		}
		stats.Statuses = append(stats.Statuses, row)
		stats.TotalBounties += row.Count
		stats.TotalConfirmed += row.TotalConfirmed
		stats.ContributionCount += row.ContributionCount
	}
	return stats, nil
}

// Sessions exposes the moderation-session store for the API layer. May be a
// disabled store when redis is not configured.
func (s *Service) Sessions() *store.ModerationSessionStore {
	return s.sessions
}

// notifyUser publishes a user notification. Best-effort: failures are logged,
// never propagated to the caller.
func (s *Service) notifyUser(ctx context.Context, recipientID, message string) {
	if err := s.eventProducer.PublishUserNotification(ctx, recipientID, message); err != nil {
		log.Printf("level=warn component=notifier msg=\"user notification failed\" recipient_id=%s err=%v", recipientID, err)
	}
}

// notifyAdmins fans a message out to every configured admin with bounded
// concurrency. One recipient failing never aborts the batch.
func (s *Service) notifyAdmins(ctx context.Context, message string) {
	if len(s.adminUserIDs) == 0 {
		return
	}

	sem := make(chan struct{}, adminFanOutLimit)
	var wg sync.WaitGroup
	for _, adminID := range s.adminUserIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(recipientID string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := s.eventProducer.PublishAdminNotification(ctx, recipientID, message); err != nil {
				log.Printf("level=warn component=notifier msg=\"admin notification failed\" recipient_id=%s err=%v", recipientID, err)
			}
		}(adminID)
	}
	wg.Wait()
}

// ensure the concrete clients satisfy the service-facing interfaces.
var (
	_ PixProcessor   = (*pixclient.Client)(nil)
	_ AddressDeriver = (*walletclient.Client)(nil)
	_ RateConverter  = (*rateclient.Client)(nil)
)
