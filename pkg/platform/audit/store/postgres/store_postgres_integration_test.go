//go:build integration

package postgres_test

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/blake2b"

	audit "vaxtrack/pkg/platform/audit"
	auditpg "vaxtrack/pkg/platform/audit/store/postgres"
	"vaxtrack/pkg/testutil/containers"
)

type OutboxStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpg.Store
}

func TestOutboxStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxStoreSuite))
}

func (s *OutboxStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = auditpg.New(s.postgres.DB)
}

func (s *OutboxStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "audit_outbox"))
}

// verifyChain recomputes the hash chain from the stored payloads in seq
// order and asserts every stored head matches. A fork shows up as a
// mismatch on the second row chaining off a duplicated head.
func (s *OutboxStoreSuite) verifyChain() int {
	rows, err := s.postgres.DB.QueryContext(context.Background(), `
		SELECT payload, chain_hash FROM audit_outbox ORDER BY seq
	`)
	s.Require().NoError(err)
	defer rows.Close()

	var prev []byte
	count := 0
	for rows.Next() {
		var payload, storedHead []byte
		s.Require().NoError(rows.Scan(&payload, &storedHead))

		head := blake2b.Sum256(append(prev, payload...))
		s.Require().True(bytes.Equal(head[:], storedHead),
			"chain broken at seq position %d", count+1)
		prev = head[:]
		count++
	}
	s.Require().NoError(rows.Err())
	return count
}

func (s *OutboxStoreSuite) TestAppendExtendsChain() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.Append(ctx, audit.Event{
			Action:      string(audit.EventStockDeducted),
			Timestamp:   time.Now().UTC(),
			BatchNumber: "B001",
			Quantity:    1,
			Reason:      fmt.Sprintf("entry %d", i),
			Outcome:     "success",
		}))
	}
	s.Equal(3, s.verifyChain())
}

func (s *OutboxStoreSuite) TestConcurrentAppendsKeepChainLinear() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := s.store.Append(ctx, audit.Event{
				Action:    string(audit.EventDoseAdministered),
				Timestamp: time.Now().UTC(),
				Quantity:  1,
				Reason:    fmt.Sprintf("writer %d", n),
				Outcome:   "success",
			})
			s.NoError(err)
		}(i)
	}
	wg.Wait()

	s.Equal(goroutines, s.verifyChain())
}
