package audithook_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audithook "github.com/xraph/licensing/audit_hook"
	"github.com/xraph/licensing/event"
	"github.com/xraph/licensing/id"
)

type sink struct {
	events []*audithook.AuditEvent
}

func (s *sink) Record(_ context.Context, ev *audithook.AuditEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func TestRecordsIssuedLicense(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)
	holder := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	meta := event.NewMeta(id.NewDeploymentID(), holder)

	require.NoError(t, ext.OnLicenseIssued(context.Background(), event.Issued{
		Meta:      meta,
		Holder:    holder,
		LicenseID: 7,
		PricePaid: 10_000_000,
	}))

	require.Len(t, s.events, 1)
	got := s.events[0]
	assert.Equal(t, audithook.ActionLicenseIssued, got.Action)
	assert.Equal(t, audithook.ResourceLicense, got.Resource)
	assert.Equal(t, "7", got.ResourceID)
	assert.Equal(t, audithook.OutcomeSuccess, got.Outcome)
	assert.Equal(t, "10000000", got.Metadata["price_paid"])
	assert.Equal(t, meta.ID.String(), got.Metadata["event_id"])
	assert.Equal(t, holder.Hex(), got.Metadata["caller"])
}

func TestRecordsRejectedAdoptionAsFailure(t *testing.T) {
	s := &sink{}
	ext := audithook.New(s)

	require.NoError(t, ext.OnAdoptRejected(context.Background(), event.AdoptRejected{
		Meta:   event.NewMeta(id.NewDeploymentID(), common.Address{}),
		Reason: "sale is not active",
	}))

	require.Len(t, s.events, 1)
	assert.Equal(t, audithook.OutcomeFailure, s.events[0].Outcome)
	assert.Equal(t, "sale is not active", s.events[0].Reason)
}

func TestActionFiltering(t *testing.T) {
	ctx := context.Background()
	meta := event.NewMeta(id.NewDeploymentID(), common.Address{})

	t.Run("enabled", func(t *testing.T) {
		s := &sink{}
		ext := audithook.New(s, audithook.WithEnabledActions(audithook.ActionWithdrawn))
		require.NoError(t, ext.OnPriceChanged(ctx, event.PriceChanged{Meta: meta, Old: 1, New: 2}))
		require.NoError(t, ext.OnWithdrawn(ctx, event.Withdrawn{Meta: meta, Amount: 5}))
		require.Len(t, s.events, 1)
		assert.Equal(t, audithook.ActionWithdrawn, s.events[0].Action)
	})

	t.Run("disabled", func(t *testing.T) {
		s := &sink{}
		ext := audithook.New(s, audithook.WithDisabledActions(audithook.ActionPauseChanged))
		require.NoError(t, ext.OnPauseChanged(ctx, event.PauseChanged{Meta: meta, New: true}))
		require.NoError(t, ext.OnPriceChanged(ctx, event.PriceChanged{Meta: meta, Old: 1, New: 2}))
		require.Len(t, s.events, 1)
		assert.Equal(t, audithook.ActionPriceChanged, s.events[0].Action)
	})
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))
	err := ext.OnWithdrawn(context.Background(), event.Withdrawn{
		Meta: event.NewMeta(id.NewDeploymentID(), common.Address{}),
	})
	assert.NoError(t, err)
}
