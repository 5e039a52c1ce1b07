package medbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"rehabgo/lib/telemetry"

	"github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"
)

const signInPage = `<!DOCTYPE html>
<html><body>
<form id="patient-signin-form" action="/patients/sign_in" method="post">
	<input type="hidden" name="authenticity_token" value="csrf-signin">
	<input type="text" name="patient[username]" value="">
	<input type="password" name="patient[password]" value="">
	<input type="submit" name="commit" value="Sign In">
</form>
</body></html>`

const accessCodeFormPage = `<!DOCTYPE html>
<html><body>
<form id="program-access-token" action="/register_token" method="post">
	<input type="hidden" name="authenticity_token" value="csrf-token">
	<input type="text" name="token" value="">
</form>
</body></html>`

// fakePortal mimics the portal's session behavior: form based sign in, access
// code navigation that mutates the session's current program, and a workout
// api that answers from either an explicit id or the session's current state.
type fakePortal struct {
	mu      sync.Mutex
	logins  map[string]string
	codes   map[string]int64
	current map[string]int64

	// ids the episodes list endpoint reports for any session
	listEpisodes []int64
	// embed the target episode id into the token landing page
	embedId bool
	// token navigation renders the page but leaves session state untouched
	inertNavigation bool

	nextSession int
	server      *httptest.Server
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{
		logins:  map[string]string{},
		codes:   map[string]int64{},
		current: map[string]int64{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sign_in", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, signInPage)
	})
	mux.HandleFunc("/patients/sign_in", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "csrf-signin", r.PostFormValue("authenticity_token"))

		suffix, err := random.String(8)
		require.NoError(t, err)

		p.mu.Lock()
		p.nextSession++
		session := fmt.Sprintf("session-%d-%s", p.nextSession, suffix)
		p.logins[r.PostFormValue("patient[username]")] = r.PostFormValue("patient[password]")
		p.mu.Unlock()

		http.SetCookie(w, &http.Cookie{Name: "portal_session", Value: session, Path: "/"})
		http.Redirect(w, r, "/home", http.StatusFound)
	})
	mux.HandleFunc("/home", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Welcome back</body></html>`)
	})
	mux.HandleFunc("/access_token", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := p.session(r); !ok {
			http.Redirect(w, r, "/sign_in", http.StatusFound)
			return
		}
		fmt.Fprint(w, accessCodeFormPage)
	})
	mux.HandleFunc("/access_token/", func(w http.ResponseWriter, r *http.Request) {
		session, ok := p.session(r)
		if !ok {
			http.Redirect(w, r, "/sign_in", http.StatusFound)
			return
		}
		code := r.URL.Path[len("/access_token/"):]

		p.mu.Lock()
		id, known := p.codes[code]
		if known && !p.inertNavigation {
			p.current[session] = id
		}
		embed := p.embedId && known
		p.mu.Unlock()

		if embed {
			fmt.Fprintf(w, `<html><body><script>window.portalConfig = {"episode_id": %d};</script></body></html>`, id)
			return
		}
		fmt.Fprint(w, `<html><body>Your exercise plan is loading.</body></html>`)
	})
	mux.HandleFunc("/register_token", func(w http.ResponseWriter, r *http.Request) {
		session, ok := p.session(r)
		if !ok {
			http.Redirect(w, r, "/sign_in", http.StatusFound)
			return
		}
		require.NoError(t, r.ParseForm())
		require.Equal(t, "csrf-token", r.PostFormValue("authenticity_token"))

		p.mu.Lock()
		id, known := p.codes[r.PostFormValue("token")]
		if known {
			p.current[session] = id
		}
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !known {
			fmt.Fprint(w, `{"error": "invalid access code"}`)
			return
		}
		fmt.Fprintf(w, `{"episode_id": %d}`, id)
	})
	mux.HandleFunc(episodeApiPath, func(w http.ResponseWriter, r *http.Request) {
		session, ok := p.session(r)
		if !ok {
			http.Redirect(w, r, "/sign_in", http.StatusFound)
			return
		}

		var id int64
		if raw := r.URL.Query().Get("episode_id"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			require.NoError(t, err)
			id = parsed
		} else {
			p.mu.Lock()
			id = p.current[session]
			p.mu.Unlock()
		}

		w.Header().Set("Content-Type", "application/json")
		if id == 0 {
			fmt.Fprint(w, `{}`)
			return
		}
		fmt.Fprint(w, payloadJson(id))
	})
	mux.HandleFunc(episodesListPath, func(w http.ResponseWriter, r *http.Request) {
		if _, ok := p.session(r); !ok {
			http.Redirect(w, r, "/sign_in", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"episodes": [`)
		for i, id := range p.listEpisodes {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id": %d}`, id)
		}
		fmt.Fprint(w, `]}`)
	})
	mux.HandleFunc("/sign_out", func(w http.ResponseWriter, r *http.Request) {
		session, ok := p.session(r)
		if ok {
			p.mu.Lock()
			delete(p.current, session)
			p.mu.Unlock()
		}
		fmt.Fprint(w, `<html><body>Signed out</body></html>`)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakePortal) session(r *http.Request) (string, bool) {
	cookie, err := r.Cookie("portal_session")
	if err != nil {
		return "", false
	}
	return cookie.Value, true
}

// payloadJson renders the workout endpoint's body for an episode. Every
// episode gets a deterministic program derived from its id so tests can
// assert which program a session actually landed on.
func payloadJson(episodeId int64) string {
	return fmt.Sprintf(`{
		"episode": {"id": %d, "name": "Episode %d"},
		"program": {
			"id": %d,
			"name": "Program %d",
			"program_exercises": [
				{
					"name": "Chin Tuck",
					"description": "<p>Tuck your chin gently.</p>",
					"min_sets": 2,
					"max_sets": 3,
					"min_reps": 10,
					"max_reps": 10,
					"note": "Keep shoulders relaxed",
					"priority": 1,
					"program_exercise_attributes": [
						{"type": "sets", "value": "3"},
						{"type": "reps", "value": 10},
						{"type": "hold", "value": "5 seconds"}
					]
				}
			]
		}
	}`, episodeId, episodeId, episodeId+1000, episodeId)
}

func newTestClient(t *testing.T, portal *fakePortal) *Client {
	client, err := NewClient(context.Background(), ClientOptions{BaseUrl: portal.server.URL})
	require.NoError(t, err)
	return client
}

func TestLoginSubmitsCredentialsThroughForm(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)

	err := client.Login(context.Background(), "pat", "hunter2")
	require.NoError(t, err)

	portal.mu.Lock()
	defer portal.mu.Unlock()
	require.Equal(t, "hunter2", portal.logins["pat"])
}

func TestBindUsesScrapedIdentifier(t *testing.T) {
	defer telemetry.SetupForTesting(t, "scrapers/medbridge")()

	portal := newFakePortal(t)
	portal.codes["neck-code"] = 9001
	portal.embedId = true
	client := newTestClient(t, portal)

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "pat", "hunter2"))

	payload, binding, err := client.Bind(ctx, "neck-code")
	require.NoError(t, err)
	require.Equal(t, ViaIdentifierFetch, binding.Via)
	require.Equal(t, KindEpisode, binding.Kind)
	require.EqualValues(t, 9001, binding.Id)
	require.NotNil(t, payload.Episode)
	require.EqualValues(t, 9001, *payload.Episode.Id)
	require.Equal(t, "Episode 9001", payload.Episode.Name)
}

func TestBindFallsBackToSessionState(t *testing.T) {
	portal := newFakePortal(t)
	portal.codes["knee-code"] = 4200
	// nothing scrapeable and an ambiguous episodes list, so only the
	// session's implicit current program can answer
	portal.listEpisodes = []int64{4200, 4300}
	client := newTestClient(t, portal)

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "pat", "hunter2"))

	payload, binding, err := client.Bind(ctx, "knee-code")
	require.NoError(t, err)
	require.Equal(t, ViaSessionFetch, binding.Via)
	require.Equal(t, KindEpisode, binding.Kind)
	require.EqualValues(t, 4200, binding.Id)
	require.NotNil(t, payload.Program)
	require.Equal(t, "Program 4200", payload.Program.Name)
}

func TestBindFallsBackToAccessCodeForm(t *testing.T) {
	portal := newFakePortal(t)
	portal.codes["elbow-code"] = 7700
	// navigation renders the page without touching session state, so only
	// the form submission can activate the program
	portal.inertNavigation = true
	client := newTestClient(t, portal)

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "pat", "hunter2"))

	payload, binding, err := client.Bind(ctx, "elbow-code")
	require.NoError(t, err)
	require.Equal(t, ViaRegisterToken, binding.Via)
	require.EqualValues(t, 7700, binding.Id)
	require.NotNil(t, payload.Episode)
	require.EqualValues(t, 7700, *payload.Episode.Id)
}

func TestBindFallsBackToPassiveCapture(t *testing.T) {
	portal := newFakePortal(t)
	portal.codes["wrist-code"] = 6100
	// navigation renders the page without touching session state, nothing is
	// scrapeable, and the episodes list is empty: only captured traffic can
	// answer
	portal.inertNavigation = true
	client := newTestClient(t, portal)

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "pat", "hunter2"))

	planted, err := client.FetchEpisode(ctx, KindEpisode, 6100)
	require.NoError(t, err)
	require.True(t, planted.Bound())

	payload, binding, err := client.Bind(ctx, "wrist-code")
	require.NoError(t, err)
	require.Equal(t, ViaPassiveCapture, binding.Via)
	require.Equal(t, KindEpisode, binding.Kind)
	require.EqualValues(t, 6100, binding.Id)
	require.EqualValues(t, 6100, *payload.Episode.Id)
}

func TestBindPrefersExplicitFetchOverPassiveCapture(t *testing.T) {
	portal := newFakePortal(t)
	portal.codes["neck-code"] = 9001
	portal.embedId = true
	client := newTestClient(t, portal)

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "pat", "hunter2"))

	// plant a stale captured payload from an unrelated program; the binder
	// must not reach for it when an identifier fetch can answer
	stale, err := client.FetchEpisode(ctx, KindEpisode, 4200)
	require.NoError(t, err)
	require.True(t, stale.Bound())
	require.NotNil(t, client.lastCaptured())

	payload, binding, err := client.Bind(ctx, "neck-code")
	require.NoError(t, err)
	require.Equal(t, ViaIdentifierFetch, binding.Via)
	require.EqualValues(t, 9001, *payload.Episode.Id)
}

func TestBindReportsUnboundForUnknownCode(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)

	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "pat", "hunter2"))

	_, _, err := client.Bind(ctx, "no-such-code")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnbound))
}

func TestSessionsDoNotShareProgramState(t *testing.T) {
	portal := newFakePortal(t)
	portal.codes["neck-code"] = 9001
	portal.codes["knee-code"] = 4200

	ctx := context.Background()

	first := newTestClient(t, portal)
	require.NoError(t, first.Login(ctx, "pat", "hunter2"))
	firstPayload, _, err := first.Bind(ctx, "neck-code")
	require.NoError(t, err)

	second := newTestClient(t, portal)
	require.NoError(t, second.Login(ctx, "pat", "hunter2"))
	secondPayload, _, err := second.Bind(ctx, "knee-code")
	require.NoError(t, err)

	require.EqualValues(t, 9001, *firstPayload.Episode.Id)
	require.EqualValues(t, 4200, *secondPayload.Episode.Id)

	// the first session's state must survive the second session's binding
	again, err := first.FetchEpisode(ctx, "", 0)
	require.NoError(t, err)
	require.EqualValues(t, 9001, *again.Episode.Id)
}

func TestCurrentEpisodeIdTrustsOnlySingletonLists(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)
	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "pat", "hunter2"))

	portal.listEpisodes = []int64{9001}
	id, ok := client.CurrentEpisodeId(ctx)
	require.True(t, ok)
	require.EqualValues(t, 9001, id)

	portal.listEpisodes = []int64{9001, 9002}
	_, ok = client.CurrentEpisodeId(ctx)
	require.False(t, ok)

	portal.listEpisodes = nil
	_, ok = client.CurrentEpisodeId(ctx)
	require.False(t, ok)
}

func TestLogoutAcceptsRedirects(t *testing.T) {
	portal := newFakePortal(t)
	client := newTestClient(t, portal)
	ctx := context.Background()
	require.NoError(t, client.Login(ctx, "pat", "hunter2"))
	require.NoError(t, client.Logout(ctx))
}
