package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/lottobet/internal/config"
	"github.com/alanyoungcy/lottobet/internal/domain"
)

type fakeArchiver struct {
	count  int64
	err    error
	before time.Time
}

func (f *fakeArchiver) ArchiveReceipt(context.Context, domain.Receipt) (string, error) {
	return "", nil
}

func (f *fakeArchiver) ArchiveBefore(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return f.count, f.err
}

type fakePruner struct {
	calls int
}

func (f *fakePruner) DeleteBefore(context.Context, time.Time) (int64, error) {
	f.calls++
	return 7, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunArchivePrunesAfterUpload(t *testing.T) {
	cutoff := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	arch := &fakeArchiver{count: 7}
	pr := &fakePruner{}

	archived, deleted, err := runArchive(context.Background(), arch, pr, cutoff, true, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(7), archived)
	assert.Equal(t, int64(7), deleted)
	assert.Equal(t, cutoff, arch.before)
	assert.Equal(t, 1, pr.calls)
}

func TestRunArchiveKeepsRowsWithoutPrune(t *testing.T) {
	pr := &fakePruner{}
	_, deleted, err := runArchive(context.Background(), &fakeArchiver{count: 3}, pr, time.Now(), false, discardLogger())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Zero(t, pr.calls)
}

func TestRunArchiveNeverPrunesAfterFailedUpload(t *testing.T) {
	pr := &fakePruner{}
	_, _, err := runArchive(context.Background(), &fakeArchiver{err: errors.New("s3 down")}, pr, time.Now(), true, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app: archive receipts")
	assert.Zero(t, pr.calls)
}

func TestBuildSenders(t *testing.T) {
	assert.Empty(t, buildSenders(config.NotifyConfig{TelegramToken: "t"}), "chat id missing")

	senders := buildSenders(config.NotifyConfig{
		TelegramToken:     "t",
		TelegramChatID:    "1",
		DiscordWebhookURL: "https://discord.example/hook",
	})
	require.Len(t, senders, 2)
	assert.Equal(t, "telegram", senders[0].Name())
	assert.Equal(t, "discord", senders[1].Name())
}

func TestNewUpstreamRequiresSecretWithKey(t *testing.T) {
	cfg := config.Defaults().Upstream
	cfg.BaseURL = "https://api.example.com"
	cfg.APIKey = "agent"

	_, err := newUpstream(cfg)
	assert.Error(t, err)

	cfg.APISecret = "secret"
	c, err := newUpstream(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestNewSchedulerRejectsBadCron(t *testing.T) {
	cfg := config.Defaults()
	cfg.Archive.Cron = "not a cron"
	a := New(&cfg, discardLogger())

	_, err := a.newScheduler(context.Background(), nil, &Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule archive")
}
