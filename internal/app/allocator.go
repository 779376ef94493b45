/**
 * @description
 * Deposit-address allocation. The index comes from a strictly monotonic
 * counter advanced atomically at the store, then the wallet-derivation
 * service maps index to address. Derivation is deterministic, so two distinct
 * indices can never yield the same address.
 *
 * The counter increment is not rolled back when derivation fails: an unused
 * index is a harmless gap in the wallet, and reserving-then-confirming would
 * add a round trip to every allocation for no correctness gain.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/bountypix/bounty-service/internal/domain"
)

// AllocateDepositAddress hands out the next unique deposit address. Concurrent
// calls never receive the same index; the store serializes the counter.
func (s *Service) AllocateDepositAddress(ctx context.Context) (*domain.AllocatedAddress, error) {
	index, err := s.repo.NextDepositAddressIndex(ctx, s.walletIndexOffset)
	if err != nil {
		return nil, fmt.Errorf("%w: counter advance failed: %v", ErrAllocation, err)
	}

	derived, err := s.walletClient.DeriveAddress(ctx, index)
	if err != nil {
		// The index stays consumed; the gap is visible in the log for audits.
		log.Printf("level=warn component=allocator msg=\"address derivation failed; index left unused\" index=%d err=%v", index, err)
		return nil, fmt.Errorf("%w: derivation failed for index %d: %v", ErrAllocation, index, err)
	}

	return &domain.AllocatedAddress{
		Address: derived.Address,
		Index:   index,
	}, nil
}
