// internal/query/screen.go
package query

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/e2e-harness/internal/browser/wait"
	"github.com/xkilldash9x/e2e-harness/internal/config"
)

// Screen runs accessible-first queries against the document currently loaded
// in the browser. It is a client stub: every call is one request through the Transport.
type Screen struct {
	transport Transport
	cfg       config.QueryConfig
	logger    *zap.Logger
}

// NewScreen creates a Screen bound to transport.
func NewScreen(transport Transport, cfg config.QueryConfig, logger *zap.Logger) *Screen {
	return &Screen{
		transport: transport,
		cfg:       cfg,
		logger:    logger.Named("query"),
	}
}

// -- Label --

func (s *Screen) GetByLabelText(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.get(ctx, KindLabel, m, opts)
}

func (s *Screen) GetAllByLabelText(ctx context.Context, m Matcher, opts ...Option) ([]*Element, error) {
	return s.getAll(ctx, KindLabel, m, opts)
}

func (s *Screen) QueryByLabelText(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.query(ctx, KindLabel, m, opts)
}

func (s *Screen) FindByLabelText(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.find(ctx, KindLabel, m, opts)
}

// -- Role --

func (s *Screen) GetByRole(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.get(ctx, KindRole, m, opts)
}

func (s *Screen) GetAllByRole(ctx context.Context, m Matcher, opts ...Option) ([]*Element, error) {
	return s.getAll(ctx, KindRole, m, opts)
}

func (s *Screen) QueryByRole(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.query(ctx, KindRole, m, opts)
}

func (s *Screen) FindByRole(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.find(ctx, KindRole, m, opts)
}

// -- Text --

func (s *Screen) GetByText(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.get(ctx, KindText, m, opts)
}

func (s *Screen) GetAllByText(ctx context.Context, m Matcher, opts ...Option) ([]*Element, error) {
	return s.getAll(ctx, KindText, m, opts)
}

func (s *Screen) QueryByText(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.query(ctx, KindText, m, opts)
}

func (s *Screen) FindByText(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.find(ctx, KindText, m, opts)
}

// -- Test ID --

func (s *Screen) GetByTestID(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.get(ctx, KindTestID, m, opts)
}

func (s *Screen) GetAllByTestID(ctx context.Context, m Matcher, opts ...Option) ([]*Element, error) {
	return s.getAll(ctx, KindTestID, m, opts)
}

func (s *Screen) QueryByTestID(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.query(ctx, KindTestID, m, opts)
}

func (s *Screen) FindByTestID(ctx context.Context, m Matcher, opts ...Option) (*Element, error) {
	return s.find(ctx, KindTestID, m, opts)
}

// ActiveElement returns the element that currently has focus (document.body when none does).
func (s *Screen) ActiveElement(ctx context.Context) (*Element, error) {
	resp, err := s.call(ctx, Request{Op: OpActiveElement})
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("active element: %w", ErrNoMatch)
	}
	return s.newElement(resp.Candidates[0]), nil
}

// -- Core --

func (s *Screen) collect(ctx context.Context, kind Kind, m Matcher, o *options) ([]*Element, error) {
	req := Request{
		Op:   OpCollect,
		Kind: kind,
		Options: &CollectOptions{
			Selector:        o.selector,
			Ignore:          o.ignore,
			Hidden:          o.hidden,
			TestIDAttribute: s.cfg.TestIDAttribute,
		},
	}
	resp, err := s.call(ctx, req)
	if err != nil {
		return nil, err
	}

	// An element labelled several ways appears once per label.
	seen := make(map[Handle]struct{}, len(resp.Candidates))
	var found []*Element
	for _, c := range resp.Candidates {
		if !m.matches(c.Text, o) {
			continue
		}
		if kind == KindRole && o.name != nil && !o.name.matches(c.Name, o) {
			continue
		}
		if _, dup := seen[c.Handle]; dup {
			continue
		}
		seen[c.Handle] = struct{}{}
		found = append(found, s.newElement(c))
	}

	s.logger.Debug("Query evaluated.",
		zap.String("kind", string(kind)),
		zap.Stringer("matcher", m),
		zap.Int("candidates", len(resp.Candidates)),
		zap.Int("matches", len(found)))
	return found, nil
}

func (s *Screen) get(ctx context.Context, kind Kind, m Matcher, opts []Option) (*Element, error) {
	found, err := s.collect(ctx, kind, m, newOptions(opts))
	if err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, &QueryError{Kind: kind, Matcher: m.String(), Err: ErrNoMatch}
	case 1:
		return found[0], nil
	default:
		return nil, &QueryError{Kind: kind, Matcher: m.String(), Count: len(found), Err: ErrMultipleMatches}
	}
}

func (s *Screen) getAll(ctx context.Context, kind Kind, m Matcher, opts []Option) ([]*Element, error) {
	found, err := s.collect(ctx, kind, m, newOptions(opts))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &QueryError{Kind: kind, Matcher: m.String(), Err: ErrNoMatch}
	}
	return found, nil
}

func (s *Screen) query(ctx context.Context, kind Kind, m Matcher, opts []Option) (*Element, error) {
	el, err := s.get(ctx, kind, m, opts)
	if errors.Is(err, ErrNoMatch) {
		return nil, nil
	}
	return el, err
}

func (s *Screen) find(ctx context.Context, kind Kind, m Matcher, opts []Option) (*Element, error) {
	var el *Element
	err := wait.Until(ctx, s.cfg.FindInterval, s.cfg.FindTimeout, func(ctx context.Context) (bool, error) {
		var err error
		el, err = s.get(ctx, kind, m, opts)
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	return el, nil
}

func (s *Screen) call(ctx context.Context, req Request) (*Response, error) {
	resp, err := s.transport.Call(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", req.Op, err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp, nil
}

func (s *Screen) newElement(c Candidate) *Element {
	return &Element{screen: s, handle: c.Handle, tag: c.Tag}
}
