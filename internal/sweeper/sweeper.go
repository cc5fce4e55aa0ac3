/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sweeper

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"private-stake-go/internal/models"
	"private-stake-go/internal/recovery"
	"private-stake-go/internal/session"
	"private-stake-go/internal/store"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultSchedule = "@every 10m"

// Config contains configuration for Sweeper. Recovery should be built
// without a journal: the sweeper resolves the records it already holds
// instead of writing new ones.
type Config struct {
	Session  *session.Session
	Journal  store.OperationJournal
	Recovery *recovery.Manager
	Schedule string
}

// Sweeper periodically re-derives burners with stranded funds and retries
// their recovery.
type Sweeper struct {
	sess     *session.Session
	journal  store.OperationJournal
	recovery *recovery.Manager
	schedule string
	cron     *cron.Cron
}

// Summary counts the outcome of one sweep.
type Summary struct {
	Burners   int
	Resolved  int
	Remaining int
}

func New(cfg Config) *Sweeper {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Sweeper{
		sess:     cfg.Session,
		journal:  cfg.Journal,
		recovery: cfg.Recovery,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start sweeps once, then on every tick of the schedule.
func (s *Sweeper) Start(ctx context.Context) error {
	zap.L().Info("Starting stranded funds sweeper", zap.String("schedule", s.schedule))

	if _, err := s.RunOnce(ctx); err != nil {
		zap.L().Error("Startup sweep failed", zap.Error(err))
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			zap.L().Error("Sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()

	zap.L().Info("Sweeper started")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	zap.L().Info("Stopping sweeper")
	<-s.cron.Stop().Done()
	zap.L().Info("Sweeper stopped")
}

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

type burnerKey struct {
	operationId string
	nonce       int64
	address     string
}

// RunOnce retries every open stranded record of the session owner. Records
// whose token kind is no longer stranded are resolved with the recovery
// signatures.
func (s *Sweeper) RunOnce(ctx context.Context) (*Summary, error) {
	if err := s.sess.TryAcquire(); err != nil {
		return nil, err
	}
	defer s.sess.Release()

	open, err := s.journal.ListStranded(ctx, s.sess.Owner(), false)
	if err != nil {
		return nil, fmt.Errorf("failed to list stranded funds: %w", err)
	}

	groups := make(map[burnerKey][]models.StrandedFunds)
	var keys []burnerKey
	for _, f := range open {
		k := burnerKey{operationId: f.OperationId, nonce: f.BurnerNonce, address: f.BurnerAddress}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], f)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].nonce < keys[j].nonce })

	summary := &Summary{Burners: len(keys)}
	if len(keys) == 0 {
		zap.L().Debug("No stranded funds to sweep", zap.String("owner", s.sess.Owner()))
		return summary, nil
	}

	fmt.Printf("\n%s[%s] Sweeping %d burner(s)%s\n",
		colorCyan, time.Now().Format("15:04:05"), len(keys), colorReset)

	for _, k := range keys {
		resolved, err := s.sweepBurner(ctx, k, groups[k])
		summary.Resolved += resolved
		summary.Remaining += len(groups[k]) - resolved
		if err != nil {
			fmt.Printf("  %s✗ %s (nonce %d): %s%s\n", colorRed, shorten(k.address), k.nonce, err, colorReset)
			zap.L().Error("Failed to sweep burner",
				zap.String("operation_id", k.operationId),
				zap.String("burner", k.address),
				zap.Int64("nonce", k.nonce),
				zap.Error(err))
			continue
		}
		color, symbol := colorGreen, "✓"
		if resolved < len(groups[k]) {
			color, symbol = colorYellow, "~"
		}
		fmt.Printf("  %s%s %s (nonce %d) resolved %d/%d%s\n",
			color, symbol, shorten(k.address), k.nonce, resolved, len(groups[k]), colorReset)
	}

	zap.L().Info("Sweep finished",
		zap.Int("burners", summary.Burners),
		zap.Int("resolved", summary.Resolved),
		zap.Int("remaining", summary.Remaining))
	return summary, nil
}

func (s *Sweeper) sweepBurner(ctx context.Context, k burnerKey, records []models.StrandedFunds) (int, error) {
	deriver := s.sess.Deriver()
	if deriver == nil {
		return 0, models.ErrSigningUnavailable
	}
	burner, err := deriver.Derive(ctx, k.nonce)
	if err != nil {
		return 0, err
	}
	if burner.Address() != k.address {
		return 0, fmt.Errorf("nonce %d derives %s, not the recorded burner", k.nonce, burner.Address())
	}

	ctx = models.WithOperationContext(ctx, &models.OperationContext{
		OperationId: k.operationId,
		Stage:       models.StatusFailed,
		Burner:      burner.Address(),
	})
	expected := recovery.Expected{}
	for _, f := range records {
		expected.Add(f.Kind, f.Amount)
	}
	outcome := s.recovery.RecoverExpected(ctx, s.sess, burner, k.operationId, expected)

	stillStranded := make(map[models.TokenKind]bool)
	for _, f := range outcome.Stranded {
		stillStranded[f.Kind] = true
	}
	resolution := "recovered"
	if len(outcome.Signatures) > 0 {
		resolution = strings.Join(outcome.Signatures, ",")
	}

	resolved := 0
	for _, f := range records {
		if stillStranded[f.Kind] {
			continue
		}
		if err := s.journal.ResolveStranded(ctx, f.Id, resolution); err != nil {
			zap.L().Warn("Failed to resolve stranded record",
				zap.String("id", f.Id),
				zap.Error(err))
			continue
		}
		resolved++
	}
	return resolved, nil
}

func shorten(address string) string {
	if len(address) > 12 {
		return address[:12] + "..."
	}
	return address
}
