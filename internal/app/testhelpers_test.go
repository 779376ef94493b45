package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bountypix/bounty-service/internal/domain"
	"github.com/bountypix/bounty-service/internal/store"
	"github.com/bountypix/bounty-service/pkg/pixclient"
	"github.com/bountypix/bounty-service/pkg/walletclient"
)

// memRepo is an in-memory store.Repository with the same guard semantics as
// the PostgreSQL implementation. It lets the lifecycle and reconciliation
// tests run end-to-end without a database.
type memRepo struct {
	mu            sync.Mutex
	bounties      map[int64]*domain.Bounty
	payments      map[int64]*domain.Payment
	nextBountyID  int64
	nextPaymentID int64
	counter       int64
	counterSeeded bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		bounties: make(map[int64]*domain.Bounty),
		payments: make(map[int64]*domain.Payment),
	}
}

var _ store.Repository = (*memRepo)(nil)

func (m *memRepo) CreateBounty(ctx context.Context, bounty *domain.Bounty) (*domain.Bounty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextBountyID++
	bounty.ID = m.nextBountyID
	bounty.CreatedAt = time.Now().UTC()
	bounty.UpdatedAt = bounty.CreatedAt
	m.bounties[bounty.ID] = bounty
	return bounty, nil
}

func (m *memRepo) FindBountyByID(ctx context.Context, bountyID int64) (*domain.Bounty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bounty, ok := m.bounties[bountyID]
	if !ok {
		return nil, store.ErrBountyNotFound
	}
	copied := *bounty
	return &copied, nil
}

func (m *memRepo) ListBountiesByStatus(ctx context.Context, status string, opts domain.BountyListOptions) ([]domain.Bounty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := make([]domain.Bounty, 0)
	for _, bounty := range m.bounties {
		if bounty.Status == status {
			matched = append(matched, *bounty)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.Ranking != nil && b.Ranking == nil:
			return true
		case a.Ranking == nil && b.Ranking != nil:
			return false
		case a.Ranking != nil && b.Ranking != nil && *a.Ranking != *b.Ranking:
			return *a.Ranking < *b.Ranking
		case a.TotalConfirmed != b.TotalConfirmed:
			return a.TotalConfirmed > b.TotalConfirmed
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})

	offset := opts.Offset
	if offset > len(matched) {
		offset = len(matched)
	}
	matched = matched[offset:]
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (m *memRepo) GetBountyStats(ctx context.Context) (map[string]domain.BountyStatusStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[string]domain.BountyStatusStats)
	for _, bounty := range m.bounties {
		row := stats[bounty.Status]
		row.Status = bounty.Status
		row.Count++
		row.TotalConfirmed += bounty.TotalConfirmed
		row.ContributionCount += int64(bounty.ContributionCount)
		stats[bounty.Status] = row
	}
	return stats, nil
}

func (m *memRepo) transitionBounty(bountyID int64, allowed []string, mutate func(*domain.Bounty)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bounty, ok := m.bounties[bountyID]
	if !ok {
		return store.ErrInvalidTransition
	}
	for _, status := range allowed {
		if bounty.Status == status {
			mutate(bounty)
			bounty.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return store.ErrInvalidTransition
}

func (m *memRepo) ApproveBounty(ctx context.Context, bountyID int64, moderatorID string) error {
	now := time.Now().UTC()
	return m.transitionBounty(bountyID, []string{domain.BountyStatusPendingReview}, func(b *domain.Bounty) {
		b.Status = domain.BountyStatusApproved
		b.ReviewedBy = &moderatorID
		b.ReviewedAt = &now
	})
}

func (m *memRepo) RejectBounty(ctx context.Context, bountyID int64, moderatorID string, reason *string) error {
	now := time.Now().UTC()
	return m.transitionBounty(bountyID, []string{domain.BountyStatusPendingReview}, func(b *domain.Bounty) {
		b.Status = domain.BountyStatusRejected
		b.ReviewedBy = &moderatorID
		b.ReviewedAt = &now
		b.ReviewNotes = reason
	})
}

func (m *memRepo) RemoveBounty(ctx context.Context, bountyID int64, moderatorID string, reason string) error {
	now := time.Now().UTC()
	return m.transitionBounty(bountyID, []string{domain.BountyStatusApproved, domain.BountyStatusPendingReview}, func(b *domain.Bounty) {
		b.Status = domain.BountyStatusRejected
		b.ReviewedBy = &moderatorID
		b.ReviewedAt = &now
		b.ReviewNotes = &reason
	})
}

func (m *memRepo) ClaimBounty(ctx context.Context, bountyID int64, developerID, developerDisplayName string) error {
	now := time.Now().UTC()
	return m.transitionBounty(bountyID, []string{domain.BountyStatusApproved}, func(b *domain.Bounty) {
		b.Status = domain.BountyStatusTaken
		b.DeveloperID = &developerID
		b.DeveloperName = &developerDisplayName
		b.ClaimedAt = &now
	})
}

func (m *memRepo) ApproveBountyClaim(ctx context.Context, bountyID int64) error {
	now := time.Now().UTC()
	return m.transitionBounty(bountyID, []string{domain.BountyStatusTaken}, func(b *domain.Bounty) {
		b.Status = domain.BountyStatusInDevelopment
		b.ClaimApprovedAt = &now
	})
}

func (m *memRepo) RejectBountyClaim(ctx context.Context, bountyID int64) error {
	return m.transitionBounty(bountyID, []string{domain.BountyStatusTaken}, func(b *domain.Bounty) {
		b.Status = domain.BountyStatusApproved
		b.DeveloperID = nil
		b.DeveloperName = nil
		b.ClaimedAt = nil
		b.ClaimApprovedAt = nil
	})
}

func (m *memRepo) MarkBountyCompleted(ctx context.Context, bountyID int64) error {
	return m.transitionBounty(bountyID, []string{domain.BountyStatusInDevelopment}, func(b *domain.Bounty) {
		b.Status = domain.BountyStatusCompleted
	})
}

func (m *memRepo) MarkBountyPaid(ctx context.Context, bountyID int64) error {
	return m.transitionBounty(bountyID, []string{domain.BountyStatusCompleted}, func(b *domain.Bounty) {
		b.Status = domain.BountyStatusPaid
	})
}

func (m *memRepo) RefreshBountyAggregates(ctx context.Context, bountyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bounty, ok := m.bounties[bountyID]
	if !ok {
		return store.ErrBountyNotFound
	}
	m.applyAggregates(bounty)
	return nil
}

func (m *memRepo) RefreshAllBountyAggregates(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var corrected int64
	for _, bounty := range m.bounties {
		before, beforeCount := bounty.TotalConfirmed, bounty.ContributionCount
		m.applyAggregates(bounty)
		if bounty.TotalConfirmed != before || bounty.ContributionCount != beforeCount {
			corrected++
		}
	}
	return corrected, nil
}

func (m *memRepo) applyAggregates(bounty *domain.Bounty) {
	var total int64
	var count int
	for _, payment := range m.payments {
		if payment.BountyID == bounty.ID && payment.Status == domain.PaymentStatusConfirmed {
			total += payment.FiatAmount
			count++
		}
	}
	bounty.TotalConfirmed = total
	bounty.ContributionCount = count
}

func (m *memRepo) RecomputeBountyRankings(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fundable := make([]*domain.Bounty, 0)
	for _, bounty := range m.bounties {
		if bounty.Status == domain.BountyStatusApproved {
			fundable = append(fundable, bounty)
		} else {
			bounty.Ranking = nil
		}
	}
	sort.Slice(fundable, func(i, j int) bool {
		if fundable[i].TotalConfirmed != fundable[j].TotalConfirmed {
			return fundable[i].TotalConfirmed > fundable[j].TotalConfirmed
		}
		return fundable[i].CreatedAt.Before(fundable[j].CreatedAt)
	})
	for position, bounty := range fundable {
		rank := position + 1
		bounty.Ranking = &rank
	}
	return nil
}

func (m *memRepo) CreatePayment(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPaymentID++
	payment.ID = m.nextPaymentID
	payment.CreatedAt = time.Now().UTC()
	payment.UpdatedAt = payment.CreatedAt
	m.payments[payment.ID] = payment
	return payment, nil
}

func (m *memRepo) FindPaymentByProviderPaymentID(ctx context.Context, providerPaymentID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, payment := range m.payments {
		if payment.ProviderPaymentID != nil && *payment.ProviderPaymentID == providerPaymentID {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, store.ErrPaymentNotFound
}

func (m *memRepo) FindPaymentByMerchantOrderID(ctx context.Context, merchantOrderID uuid.UUID) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, payment := range m.payments {
		if payment.MerchantOrderID != nil && *payment.MerchantOrderID == merchantOrderID {
			copied := *payment
			return &copied, nil
		}
	}
	return nil, store.ErrPaymentNotFound
}

func (m *memRepo) FindPendingPaymentByAddress(ctx context.Context, address string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var oldest *domain.Payment
	for _, payment := range m.payments {
		if payment.DepositAddress == address && payment.Status == domain.PaymentStatusPending {
			if oldest == nil || payment.CreatedAt.Before(oldest.CreatedAt) {
				oldest = payment
			}
		}
	}
	if oldest == nil {
		return nil, store.ErrPaymentNotFound
	}
	copied := *oldest
	return &copied, nil
}

func (m *memRepo) transitionPayment(paymentID int64, mutate func(*domain.Payment)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[paymentID]
	if !ok || payment.Status != domain.PaymentStatusPending {
		return store.ErrPaymentAlreadyFinal
	}
	mutate(payment)
	payment.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memRepo) ConfirmPixPayment(ctx context.Context, paymentID int64, fiatAmount int64) error {
	now := time.Now().UTC()
	return m.transitionPayment(paymentID, func(p *domain.Payment) {
		p.Status = domain.PaymentStatusConfirmed
		p.FiatAmount = fiatAmount
		p.ConfirmedAt = &now
	})
}

func (m *memRepo) ConfirmAssetPayment(ctx context.Context, paymentID int64, params store.ConfirmAssetPaymentParams) error {
	now := time.Now().UTC()
	return m.transitionPayment(paymentID, func(p *domain.Payment) {
		p.Status = domain.PaymentStatusConfirmed
		p.NativeAmount = params.NativeAmount
		p.FiatAmount = params.FiatAmount
		p.OnchainTxID = &params.OnchainTxID
		p.OnchainVout = &params.OnchainVout
		p.BlockHeight = &params.BlockHeight
		p.ConfirmedAt = &now
	})
}

func (m *memRepo) MarkPaymentExpired(ctx context.Context, paymentID int64) error {
	return m.transitionPayment(paymentID, func(p *domain.Payment) {
		p.Status = domain.PaymentStatusExpired
	})
}

func (m *memRepo) MarkPaymentFailed(ctx context.Context, paymentID int64) error {
	return m.transitionPayment(paymentID, func(p *domain.Payment) {
		p.Status = domain.PaymentStatusFailed
	})
}

func (m *memRepo) NextDepositAddressIndex(ctx context.Context, baseOffset int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.counterSeeded {
		m.counter = baseOffset + 1
		m.counterSeeded = true
	} else {
		m.counter++
	}
	return m.counter, nil
}

func (m *memRepo) payment(paymentID int64) *domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[paymentID]
	if !ok {
		return nil
	}
	copied := *payment
	return &copied
}

func (m *memRepo) bounty(bountyID int64) *domain.Bounty {
	m.mu.Lock()
	defer m.mu.Unlock()
	bounty, ok := m.bounties[bountyID]
	if !ok {
		return nil
	}
	copied := *bounty
	return &copied
}

// recordingPublisher captures notification events for assertions.
type recordingPublisher struct {
	mu         sync.Mutex
	userNotes  []string
	adminNotes []string
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	return nil
}

func (p *recordingPublisher) PublishUserNotification(ctx context.Context, recipientID, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userNotes = append(p.userNotes, recipientID+": "+message)
	return nil
}

func (p *recordingPublisher) PublishAdminNotification(ctx context.Context, recipientID, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adminNotes = append(p.adminNotes, recipientID+": "+message)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) userCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.userNotes)
}

func (p *recordingPublisher) adminCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.adminNotes)
}

// fakePixClient answers charge creation locally.
type fakePixClient struct {
	mu      sync.Mutex
	charges int
	fail    bool
}

func (c *fakePixClient) CreateCharge(ctx context.Context, payload pixclient.CreateChargeRequest) (*pixclient.CreateChargeResponse, error) {
	if c.fail {
		return nil, fmt.Errorf("processor unavailable")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.charges++
	return &pixclient.CreateChargeResponse{
		ID:          fmt.Sprintf("pix_%06d", c.charges),
		QRCopyPaste: "00020126BR.GOV.BCB.PIX" + payload.MerchantOrderID,
		QRImageURL:  "https://pix.example/qr/" + payload.MerchantOrderID,
	}, nil
}

// fakeWalletClient derives addresses deterministically from the index.
type fakeWalletClient struct {
	fail bool
}

func (c *fakeWalletClient) DeriveAddress(ctx context.Context, index int64) (*walletclient.DeriveAddressResponse, error) {
	if c.fail {
		return nil, fmt.Errorf("wallet service unavailable")
	}
	return &walletclient.DeriveAddressResponse{
		Address: fmt.Sprintf("lq1qq%010d", index),
		Index:   index,
	}, nil
}

// fakeRateClient converts at a fixed rate of 1 fiat cent per 100 native units.
type fakeRateClient struct {
	fail bool
}

func (c *fakeRateClient) ConvertToFiat(ctx context.Context, assetKind string, nativeAmount int64) (int64, error) {
	if c.fail {
		return 0, fmt.Errorf("rate service unavailable")
	}
	return nativeAmount / 100, nil
}

type testServiceOption func(*ServiceParams)

func withAdmins(ids ...string) testServiceOption {
	return func(p *ServiceParams) { p.AdminUserIDs = ids }
}

func withFee(cents int64) testServiceOption {
	return func(p *ServiceParams) { p.PixProcessingFeeCents = cents }
}

func withLargeThreshold(cents int64) testServiceOption {
	return func(p *ServiceParams) { p.LargeContributionCents = cents }
}

func withWalletClient(client AddressDeriver) testServiceOption {
	return func(p *ServiceParams) { p.WalletClient = client }
}

func withRateClient(client RateConverter) testServiceOption {
	return func(p *ServiceParams) { p.RateClient = client }
}

func newTestService(repo store.Repository, publisher *recordingPublisher, opts ...testServiceOption) *Service {
	params := ServiceParams{
		Repo:                  repo,
		PixClient:             &fakePixClient{},
		WalletClient:          &fakeWalletClient{},
		RateClient:            &fakeRateClient{},
		EventProducer:         publisher,
		PixProcessingFeeCents: 99,
		WalletIndexOffset:     10000,
	}
	for _, opt := range opts {
		opt(&params)
	}
	return NewService(params)
}

// seedBounty creates a bounty directly in the repo in the given status.
func seedBounty(repo *memRepo, title, creatorID, status string) *domain.Bounty {
	bounty, _ := repo.CreateBounty(context.Background(), &domain.Bounty{
		Title:              title,
		Description:        "test bounty",
		CreatorID:          creatorID,
		CreatorDisplayName: "Creator",
		Status:             status,
	})
	return bounty
}
