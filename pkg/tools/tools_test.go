package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/notebook-mcp/pkg/library"
	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

const (
	goURL   = "https://notebooklm.google.com/notebook/go"
	rustURL = "https://notebooklm.google.com/notebook/rust"
)

func TestDefaultRegistry(t *testing.T) {
	env := newTestEnv(t)

	var names []string
	for _, tool := range env.tools.List() {
		names = append(names, tool.Name())
		schema := tool.Schema()
		assert.Equal(t, "object", schema["type"], tool.Name())
		assert.NotEmpty(t, tool.Description(), tool.Name())
	}
	assert.Equal(t, []string{
		"ask_question", "reset_session", "list_sessions", "close_session", "get_health",
		"setup_auth", "re_auth", "add_notebook", "list_notebooks", "select_notebook", "remove_notebook",
	}, names)

	err := env.tools.Register(NewGetHealthTool(Services{}))
	assert.Error(t, err)
}

func TestAskQuestionUsesActiveNotebook(t *testing.T) {
	env := newTestEnv(t)
	env.addNotebook(t, "Go Notes", goURL)

	out, err := env.call(t, "ask_question", `{"question":"what is a goroutine?"}`)
	require.NoError(t, err)

	assert.Equal(t, "answered", out["status"])
	assert.Equal(t, "Answer: what is a goroutine?", out["answer"])
	assert.Equal(t, "go-notes", out["notebook_id"])
	assert.NotEmpty(t, out["session_id"])
	assert.Equal(t, []string{goURL}, env.factory.opened())

	nb, err := env.store.Get(context.Background(), "go-notes")
	require.NoError(t, err)
	assert.Equal(t, 1, nb.UseCount)
}

func TestAskQuestionFollowUpKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	env.addNotebook(t, "Go Notes", goURL)

	first, err := env.call(t, "ask_question", `{"question":"first"}`)
	require.NoError(t, err)
	sessionID := first["session_id"].(string)

	second, err := env.call(t, "ask_question", `{"question":"second","session_id":"`+sessionID+`"}`)
	require.NoError(t, err)

	assert.Equal(t, "Answer: second", second["answer"])
	assert.Equal(t, sessionID, second["session_id"])
	assert.Equal(t, "go-notes", second["notebook_id"], "library id is looked up from the session's notebook")
	assert.Len(t, env.factory.opened(), 1)

	session := second["session"].(map[string]interface{})
	assert.Equal(t, float64(2), session["question_count"])
}

func TestAskQuestionTargets(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.call(t, "ask_question", `{"question":"anyone?"}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, library.ErrNoActive)
	assert.Contains(t, err.Error(), "select_notebook")

	out, err := env.call(t, "ask_question", `{"question":"direct","notebook_id":"`+rustURL+`"}`)
	require.NoError(t, err)
	assert.Equal(t, "answered", out["status"])
	assert.Nil(t, out["notebook_id"])
	assert.Equal(t, []string{rustURL}, env.factory.opened())

	_, err = env.call(t, "ask_question", `{"question":"x","notebook_id":"unknown"}`)
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestAskQuestionInvalidArguments(t *testing.T) {
	env := newTestEnv(t)

	tests := map[string]string{
		"missing question":  `{}`,
		"blank question":    `{"question":"   "}`,
		"negative timeout":  `{"question":"q","timeout_ms":-1}`,
		"negative interval": `{"question":"q","poll_interval_ms":-5}`,
		"negative polls":    `{"question":"q","stable_polls":-2}`,
		"malformed":         `{"question":`,
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := env.call(t, "ask_question", args)
			assert.ErrorIs(t, err, ErrInvalidArguments)
		})
	}
}

func TestAskQuestionBlocked(t *testing.T) {
	env := newTestEnv(t)
	env.addNotebook(t, "Go Notes", goURL)
	env.creds.set(func(c *fakeCredentials) {
		c.valid = false
		c.hostRunning = true
	})

	out, err := env.call(t, "ask_question", `{"question":"q"}`)
	require.NoError(t, err)
	assert.Equal(t, "blocked", out["status"])
	assert.Contains(t, out["message"], "Close all Chrome windows")
	assert.Empty(t, env.factory.opened())
	assert.Equal(t, 0, env.creds.logins)
}

func TestSessionTools(t *testing.T) {
	env := newTestEnv(t)
	env.addNotebook(t, "Go Notes", goURL)
	env.addNotebook(t, "Rust Notes", rustURL)

	asked, err := env.call(t, "ask_question", `{"question":"q","session_id":"work"}`)
	require.NoError(t, err)
	assert.Equal(t, "work", asked["session_id"])

	listed, err := env.call(t, "list_sessions", ``)
	require.NoError(t, err)
	assert.Equal(t, float64(1), listed["count"])
	assert.Equal(t, float64(2), listed["capacity"])

	reset, err := env.call(t, "reset_session", `{"session_id":"work"}`)
	require.NoError(t, err)
	assert.Equal(t, true, reset["reset"])
	assert.Equal(t, []string{goURL, goURL}, env.factory.opened())

	_, err = env.call(t, "reset_session", `{"session_id":"work","notebook_id":"rust-notes"}`)
	require.NoError(t, err)
	s, ok := env.sessions.Get("work")
	require.True(t, ok)
	assert.Equal(t, rustURL, s.TargetResourceID())

	_, err = env.call(t, "reset_session", `{"session_id":"ghost"}`)
	assert.ErrorIs(t, err, notebook.ErrSessionNotFound)

	closed, err := env.call(t, "close_session", `{"session_id":"work"}`)
	require.NoError(t, err)
	assert.Equal(t, true, closed["closed"])

	closed, err = env.call(t, "close_session", `{"session_id":"work"}`)
	require.NoError(t, err)
	assert.Equal(t, false, closed["closed"])

	_, err = env.call(t, "close_session", `{}`)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestResetSessionWaitsForSignIn(t *testing.T) {
	env := newTestEnv(t)
	env.addNotebook(t, "Go Notes", goURL)
	env.creds.set(func(c *fakeCredentials) {
		c.valid = false
		c.hostRunning = true
	})

	out, err := env.call(t, "reset_session", `{"session_id":"fresh","notebook_id":"go-notes"}`)
	require.NoError(t, err)
	assert.Equal(t, false, out["reset"])
	assert.Equal(t, "blocked", out["status"])
	assert.Contains(t, out["message"], "Close all Chrome windows")
	assert.Empty(t, env.factory.opened(), "no tab opened while sign-in is blocked")
	assert.Equal(t, 0, env.sessions.Len())

	env.creds.set(func(c *fakeCredentials) { c.hostRunning = false })
	out, err = env.call(t, "reset_session", `{"session_id":"fresh","notebook_id":"go-notes"}`)
	require.NoError(t, err)
	assert.Equal(t, true, out["reset"])
	assert.Equal(t, 1, env.creds.logins, "sign-in repaired before the tab opened")
	assert.Equal(t, []string{goURL}, env.factory.opened())
}

func TestGetHealth(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.call(t, "get_health", `{}`)
	require.NoError(t, err)
	assert.Equal(t, "ready", out["status"])
	assert.Nil(t, out["active_notebook"])

	env.addNotebook(t, "Go Notes", goURL)
	env.creds.set(func(c *fakeCredentials) { c.valid = false })

	out, err = env.call(t, "get_health", `{}`)
	require.NoError(t, err)
	assert.Equal(t, "needs_login", out["status"])
	active := out["active_notebook"].(map[string]interface{})
	assert.Equal(t, "go-notes", active["id"])

	env.creds.set(func(c *fakeCredentials) { c.hostRunning = true })
	out, err = env.call(t, "get_health", `{}`)
	require.NoError(t, err)
	assert.Equal(t, "blocked", out["status"])
}

func TestSetupAuth(t *testing.T) {
	t.Run("already authenticated", func(t *testing.T) {
		env := newTestEnv(t)
		out, err := env.call(t, "setup_auth", `{}`)
		require.NoError(t, err)
		assert.Equal(t, true, out["authenticated"])
		assert.Equal(t, 0, env.creds.logins)
	})

	t.Run("logs in", func(t *testing.T) {
		env := newTestEnv(t)
		env.creds.set(func(c *fakeCredentials) { c.valid = false })

		out, err := env.call(t, "setup_auth", `{"timeout_ms":500}`)
		require.NoError(t, err)
		assert.Equal(t, true, out["authenticated"])
		assert.Equal(t, 1, env.creds.logins)
	})

	t.Run("blocked by host browser", func(t *testing.T) {
		env := newTestEnv(t)
		env.creds.set(func(c *fakeCredentials) {
			c.valid = false
			c.hostRunning = true
		})

		out, err := env.call(t, "setup_auth", `{"wait_for_host_exit_ms":20}`)
		require.NoError(t, err)
		assert.Equal(t, true, out["blocked"])
		assert.Equal(t, false, out["authenticated"])
		assert.Equal(t, 0, env.creds.logins)
	})

	t.Run("login failure", func(t *testing.T) {
		env := newTestEnv(t)
		env.creds.set(func(c *fakeCredentials) {
			c.valid = false
			c.loginErr = errors.New("window closed")
		})

		_, err := env.call(t, "setup_auth", `{}`)
		assert.ErrorIs(t, err, notebook.ErrAuthentication)
	})
}

func TestReAuthClearsAndSignsIn(t *testing.T) {
	env := newTestEnv(t)
	env.addNotebook(t, "Go Notes", goURL)
	_, err := env.call(t, "ask_question", `{"question":"q","session_id":"s1"}`)
	require.NoError(t, err)

	out, err := env.call(t, "re_auth", `{}`)
	require.NoError(t, err)

	assert.Equal(t, true, out["authenticated"])
	assert.Equal(t, 1, env.creds.clears)
	assert.Equal(t, 1, env.creds.logins)
	assert.Equal(t, 0, env.sessions.Len())
}

func TestNotebookTools(t *testing.T) {
	env := newTestEnv(t)
	env.addNotebook(t, "Go Notes", goURL)
	env.addNotebook(t, "Rust Notes", rustURL)

	_, err := env.call(t, "add_notebook", `{"name":"dup","url":"`+goURL+`"}`)
	assert.ErrorIs(t, err, library.ErrDuplicate)
	_, err = env.call(t, "add_notebook", `{"name":"no url"}`)
	assert.ErrorIs(t, err, ErrInvalidArguments)

	listed, err := env.call(t, "list_notebooks", `{}`)
	require.NoError(t, err)
	assert.Equal(t, float64(2), listed["count"])

	selected, err := env.call(t, "select_notebook", `{"id":"rust-notes"}`)
	require.NoError(t, err)
	assert.Equal(t, true, selected["active"])

	_, err = env.call(t, "select_notebook", `{"id":"missing"}`)
	assert.ErrorIs(t, err, library.ErrNotFound)

	removed, err := env.call(t, "remove_notebook", `{"id":"rust-notes"}`)
	require.NoError(t, err)
	assert.Equal(t, true, removed["removed"])
	assert.Equal(t, "go-notes", removed["active_notebook"])

	_, err = env.call(t, "remove_notebook", `{"id":""}`)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}
