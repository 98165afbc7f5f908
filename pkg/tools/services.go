package tools

import (
	"context"
	"time"

	"github.com/entrhq/notebook-mcp/pkg/library"
	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

// Dispatcher asks questions and runs logins.
type Dispatcher interface {
	Ask(ctx context.Context, req notebook.AskRequest) (*notebook.AnswerResult, error)
	EnsureReady(ctx context.Context) (notebook.ConnectionCheckResult, error)
	Login(ctx context.Context, timeout time.Duration) error
}

// Sessions is the subset of the session registry the tools use.
type Sessions interface {
	Get(id string) (*notebook.Session, bool)
	List() []notebook.SessionInfo
	Reset(ctx context.Context, id, target string) (*notebook.Session, error)
	Close(id string) error
	CloseAll() error
	Len() int
	Capacity() int
}

// Readiness reports whether questions can run.
type Readiness interface {
	Check(ctx context.Context) notebook.ConnectionCheckResult
	AwaitHostProcessExit(ctx context.Context, timeout, interval time.Duration) bool
}

// Library stores notebooks by id.
type Library interface {
	Add(ctx context.Context, nb library.Notebook) (*library.Notebook, error)
	List(ctx context.Context) ([]library.Notebook, error)
	Select(ctx context.Context, id string) (*library.Notebook, error)
	Remove(ctx context.Context, id string) error
	Active(ctx context.Context) (*library.Notebook, error)
	Resolve(ctx context.Context, ref string) (library.Target, error)
	Touch(ctx context.Context, id string) error
}

// Credentials drops the stored sign-in.
type Credentials interface {
	ClearCredentials() error
}

// Services are the collaborators the tools run against.
type Services struct {
	Dispatcher  Dispatcher
	Sessions    Sessions
	Readiness   Readiness
	Library     Library
	Credentials Credentials

	// LoginTimeout bounds setup_auth and re_auth when the caller sets none
	LoginTimeout time.Duration
}
