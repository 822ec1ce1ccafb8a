package post

import (
	"strings"
	"time"
	"unicode/utf8"

	"microblog/internal/common"
	"microblog/internal/config"
)

const (
	DefaultCharLimit = 500
	DefaultCooldown  = 15 * time.Minute
)

// Policy is the admission policy for new posts: a content length window and
// a per-author cooldown that exempt authors skip.
type Policy struct {
	CharLimit int
	Cooldown  time.Duration
	exempt    map[string]struct{}
}

func NewPolicy(cfg config.PostsConfig) *Policy {
	p := &Policy{
		CharLimit: cfg.CharLimit,
		Cooldown:  cfg.Cooldown,
		exempt:    make(map[string]struct{}, len(cfg.ExemptUsers)),
	}
	if p.CharLimit <= 0 {
		p.CharLimit = DefaultCharLimit
	}
	if p.Cooldown <= 0 {
		p.Cooldown = DefaultCooldown
	}
	for _, u := range cfg.ExemptUsers {
		p.exempt[u] = struct{}{}
	}
	return p
}

// NormalizeContent trims raw and checks its length in code points.
func (p *Policy) NormalizeContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return "", common.ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > p.CharLimit {
		return "", common.ErrContentTooLong
	}
	return content, nil
}

func (p *Policy) IsExempt(author string) bool {
	_, ok := p.exempt[author]
	return ok
}

// CheckCooldown returns a *common.CooldownError when author posted less than
// Cooldown before now. last is nil for authors who never posted.
func (p *Policy) CheckCooldown(author string, last *time.Time, now time.Time) error {
	if last == nil || p.IsExempt(author) {
		return nil
	}
	elapsed := now.Sub(*last)
	if elapsed < p.Cooldown {
		return &common.CooldownError{Remaining: p.Cooldown - elapsed}
	}
	return nil
}
