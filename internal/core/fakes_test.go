package core

import (
	"context"
	"errors"

	"github.com/kukawski/le-cpanel-updater/internal/provider"
)

// fakeOrder 记录编排器的调用
type fakeOrder struct {
	valid            bool
	validAfterVerify bool
	pending          []provider.PendingChallenge
	finalized        bool
	stayUnfinalized  bool

	validErr    error
	verifyErr   error
	finalizeErr error
	certErr     error

	onVerify      func(identifier string)
	onCertificate func() error

	calls    []string
	verified []string
}

func (f *fakeOrder) AllAuthorizationsValid(ctx context.Context) (bool, error) {
	f.calls = append(f.calls, "valid")
	return f.valid, f.validErr
}

func (f *fakeOrder) PendingAuthorizations(ctx context.Context, typ provider.ChallengeType) ([]provider.PendingChallenge, error) {
	f.calls = append(f.calls, "pending")
	if typ != provider.ChallengeHTTP01 {
		return nil, errors.New("unexpected challenge type")
	}
	return f.pending, nil
}

func (f *fakeOrder) VerifyPendingAuthorization(ctx context.Context, identifier string, typ provider.ChallengeType) error {
	f.calls = append(f.calls, "verify")
	f.verified = append(f.verified, identifier)
	if f.onVerify != nil {
		f.onVerify(identifier)
	}
	if f.verifyErr != nil {
		return f.verifyErr
	}
	if f.validAfterVerify {
		f.valid = true
	}
	return nil
}

func (f *fakeOrder) IsFinalized(ctx context.Context) (bool, error) {
	f.calls = append(f.calls, "finalized")
	return f.finalized, nil
}

func (f *fakeOrder) Finalize(ctx context.Context) error {
	f.calls = append(f.calls, "finalize")
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalized = !f.stayUnfinalized
	return nil
}

func (f *fakeOrder) Certificate(ctx context.Context) error {
	f.calls = append(f.calls, "certificate")
	if f.certErr != nil {
		return f.certErr
	}
	if f.onCertificate != nil {
		return f.onCertificate()
	}
	return nil
}

func (f *fakeOrder) called(name string) bool {
	for _, c := range f.calls {
		if c == name {
			return true
		}
	}
	return false
}

type fakeProvider struct {
	order *fakeOrder
	err   error

	primary string
	domains []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) GetOrCreateOrder(ctx context.Context, primaryDomain string, domains []string) (provider.Order, error) {
	p.primary = primaryDomain
	p.domains = domains
	if p.err != nil {
		return nil, p.err
	}
	return p.order, nil
}

type fakeInstaller struct {
	err   error
	calls int
}

func (i *fakeInstaller) Name() string { return "fake" }

func (i *fakeInstaller) Install(ctx context.Context) error {
	i.calls++
	return i.err
}
