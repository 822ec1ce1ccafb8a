package post

import (
	"strings"
	"testing"
	"time"

	"microblog/internal/common"
	"microblog/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPolicy(exempt ...string) *Policy {
	return NewPolicy(config.PostsConfig{
		CharLimit:   500,
		Cooldown:    15 * time.Minute,
		ExemptUsers: exempt,
	})
}

func TestNormalizeContent(t *testing.T) {
	p := newTestPolicy()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{name: "trimmed", raw: "  hello \n", want: "hello"},
		{name: "empty", raw: "", wantErr: common.ErrEmptyContent},
		{name: "whitespace only", raw: " \t\n ", wantErr: common.ErrEmptyContent},
		{name: "at limit", raw: strings.Repeat("a", 500), want: strings.Repeat("a", 500)},
		{name: "over limit", raw: strings.Repeat("a", 501), wantErr: common.ErrContentTooLong},
		{name: "limit counts code points", raw: strings.Repeat("é", 500), want: strings.Repeat("é", 500)},
		{name: "padding does not count", raw: "   " + strings.Repeat("a", 500) + "   ", want: strings.Repeat("a", 500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.NormalizeContent(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckCooldown_Boundary(t *testing.T) {
	p := newTestPolicy()
	last := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	err := p.CheckCooldown("alice", &last, last.Add(15*time.Minute-time.Millisecond))
	var cd *common.CooldownError
	require.ErrorAs(t, err, &cd)
	assert.ErrorIs(t, err, common.ErrRateLimited)
	assert.Equal(t, int64(1), cd.RemainingSeconds())

	assert.NoError(t, p.CheckCooldown("alice", &last, last.Add(15*time.Minute)))
}

func TestCheckCooldown_RemainingSeconds(t *testing.T) {
	p := newTestPolicy()
	last := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	err := p.CheckCooldown("alice", &last, last)
	var cd *common.CooldownError
	require.ErrorAs(t, err, &cd)
	assert.Equal(t, int64(900), cd.RemainingSeconds())
	assert.Equal(t, "cooldown active 900s", cd.Error())

	err = p.CheckCooldown("alice", &last, last.Add(10*time.Minute+500*time.Millisecond))
	require.ErrorAs(t, err, &cd)
	assert.Equal(t, int64(300), cd.RemainingSeconds())
}

func TestCheckCooldown_NeverPosted(t *testing.T) {
	p := newTestPolicy()
	assert.NoError(t, p.CheckCooldown("alice", nil, time.Now()))
}

func TestCheckCooldown_Exempt(t *testing.T) {
	p := newTestPolicy("fries")
	last := time.Now()

	assert.True(t, p.IsExempt("fries"))
	assert.False(t, p.IsExempt("Fries"))
	assert.NoError(t, p.CheckCooldown("fries", &last, last))
	assert.Error(t, p.CheckCooldown("alice", &last, last))
}

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(config.PostsConfig{})
	assert.Equal(t, DefaultCharLimit, p.CharLimit)
	assert.Equal(t, DefaultCooldown, p.Cooldown)
}
