package medbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"rehabgo/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type BindKind string

const (
	KindEpisode BindKind = "episode"
	KindProgram BindKind = "program"
)

// Binding reports what the binder learned about which program the session
// landed on, and which strategy produced the payload. Kind is empty when no
// identifier was discoverable.
type Binding struct {
	Kind BindKind
	Id   int64
	Via  string
}

const (
	ViaIdentifierFetch = "identifier_fetch"
	ViaSessionFetch    = "session_fetch"
	ViaPassiveCapture  = "passive_capture"
	ViaRegisterToken   = "register_token"
)

// Identifier patterns over page source and url, in decreasing priority:
// quoted json key, single quoted, unquoted assignment, camelCase key, html
// data attribute, workout api query substring, plain url query param. Episode
// ids outrank program ids.
var episodeIdPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"episode_id"\s*:\s*(\d+)`),
	regexp.MustCompile(`'episode_id'\s*:\s*(\d+)`),
	regexp.MustCompile(`episode_id["']?\s*[:=]\s*["']?(\d+)`),
	regexp.MustCompile(`"episodeId"\s*:\s*(\d+)`),
	regexp.MustCompile(`data-episode-id=["'](\d+)["']`),
	regexp.MustCompile(`episode_with_video_urls\?[^"']*episode_id=(\d+)`),
	regexp.MustCompile(`[?&]episode_id=(\d+)`),
}

var programIdPatterns = []*regexp.Regexp{
	regexp.MustCompile(`"program_id"\s*:\s*(\d+)`),
	regexp.MustCompile(`'program_id'\s*:\s*(\d+)`),
	regexp.MustCompile(`"programId"\s*:\s*(\d+)`),
}

// scrapeIdentifier searches page source plus the page url for an embedded
// episode or program id. Patterns run in fixed priority order and the search
// stops at the first match.
func scrapeIdentifier(html, pageUrl string) (int64, BindKind, bool) {
	text := html + "\n" + pageUrl
	for _, pattern := range episodeIdPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil {
				return id, KindEpisode, true
			}
		}
	}
	for _, pattern := range programIdPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil {
				return id, KindProgram, true
			}
		}
	}
	return 0, "", false
}

// tokenPage is a rendered portal page together with the url the request
// finally landed on after redirects.
type tokenPage struct {
	html string
	url  string
}

func finalUrl(res *resty.Response) string {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL.String()
	}
	return res.Request.URL
}

// navigateToken requests the access code url. Hitting it before anything else
// is what ties the session to this token's program; if the portal bounces us
// to sign in instead, authenticate and request it once more.
func (c *Client) navigateToken(ctx context.Context, code string) (tokenPage, error) {
	target := accessTokenPath + "/" + url.PathEscape(code)

	res, err := c.http.R().SetContext(ctx).Get(target)
	if err != nil {
		return tokenPage{}, err
	}
	if err := checkStatus(res); err != nil {
		return tokenPage{}, err
	}

	page := tokenPage{html: res.String(), url: finalUrl(res)}
	if !looksLikeSignIn(page) {
		return page, nil
	}

	slog.DebugContext(ctx, "token page bounced to sign in, authenticating", "url", page.url)
	if err := c.login(ctx); err != nil {
		return tokenPage{}, err
	}

	res, err = c.http.R().SetContext(ctx).Get(target)
	if err != nil {
		return tokenPage{}, err
	}
	if err := checkStatus(res); err != nil {
		return tokenPage{}, err
	}
	return tokenPage{html: res.String(), url: finalUrl(res)}, nil
}

func looksLikeSignIn(page tokenPage) bool {
	if strings.Contains(page.url, "sign_in") {
		return true
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.html))
	if err != nil {
		return false
	}
	return doc.Find(`input[name="patient[username]"]`).Length() > 0
}

const settleWait = time.Millisecond * 500

// settle waits out the token page's client-side bootstrap and reads the page
// once more, so the second read reflects whatever current-program state the
// navigation established server-side. Failures fall back to the unsettled
// page.
func (c *Client) settle(ctx context.Context, page tokenPage) tokenPage {
	select {
	case <-time.After(settleWait):
	case <-ctx.Done():
		return page
	}

	res, err := c.http.R().SetContext(ctx).Get(page.url)
	if err != nil || checkStatus(res) != nil {
		return page
	}
	return tokenPage{html: res.String(), url: finalUrl(res)}
}

// bindPass runs the strategy chain once over an already navigated session:
// scrape an identifier and fetch with it, fetch against the session's
// implicit program, then fall back to passively captured traffic.
func (c *Client) bindPass(ctx context.Context, code string) (*EpisodePayload, Binding, error) {
	page, err := c.navigateToken(ctx, code)
	if err != nil {
		return nil, Binding{}, err
	}
	page = c.settle(ctx, page)

	var lastErr error

	id, kind, found := scrapeIdentifier(page.html, page.url)
	if found {
		slog.DebugContext(ctx, "scraped identifier from token page", "kind", kind, "id", id)
	} else if episodeId, ok := c.CurrentEpisodeId(ctx); ok {
		id, kind, found = episodeId, KindEpisode, true
		slog.DebugContext(ctx, "using sole entry of episodes list", "id", id)
	}
	if found {
		payload, err := c.FetchEpisode(ctx, kind, id)
		if err != nil {
			lastErr = err
			slog.WarnContext(ctx, "fetch with scraped identifier failed", "kind", kind, "id", id, "err", err)
		} else if payload.Bound() {
			return payload, Binding{Kind: kind, Id: id, Via: ViaIdentifierFetch}, nil
		}
	}

	payload, err := c.FetchEpisode(ctx, "", 0)
	if err != nil {
		lastErr = err
		slog.WarnContext(ctx, "fetch against session current program failed", "err", err)
	} else if payload.Bound() {
		return payload, bindingOf(payload, ViaSessionFetch), nil
	}

	// weakest evidence: a payload observed in passing may belong to the wrong
	// program, and the portal offers no way to verify
	if captured := c.lastCaptured(); captured != nil {
		return captured, bindingOf(captured, ViaPassiveCapture), nil
	}

	if lastErr != nil {
		return nil, Binding{}, fmt.Errorf("%w (last transport error: %s)", ErrUnbound, lastErr)
	}
	return nil, Binding{}, ErrUnbound
}

// Bind drives the already authenticated session onto the program behind the
// access code and returns its workout payload. Strategies run strictly in
// order and the first hit wins: an identifier-qualified fetch outranks the
// session's implicit program, which outranks passively captured traffic.
// When the whole chain misses, assume the earlier login silently failed,
// re-authenticate, submit the code through the portal's form, and run the
// chain exactly once more.
func (c *Client) Bind(ctx context.Context, code string) (*EpisodePayload, Binding, error) {
	ctx, span := tracer.Start(ctx, "client:Bind")
	defer span.End()

	payload, binding, err := c.bindPass(ctx, code)
	if err == nil {
		span.SetAttributes(attribute.String("via", binding.Via))
		return payload, binding, nil
	}
	if errors.Is(err, htmlutil.ErrFormNotFound) {
		span.SetStatus(codes.Error, "portal page structure unrecognized")
		return nil, Binding{}, err
	}

	slog.InfoContext(ctx, "bind pass failed, retrying with fresh authentication", "err", err)
	span.AddEvent("first bind pass failed, re-authenticating")

	if err := c.login(ctx); err != nil {
		return nil, Binding{}, err
	}
	c.clearCaptured()

	if id, ok, err := c.RegisterToken(ctx, code); err != nil {
		slog.WarnContext(ctx, "access code form submission failed", "err", err)
	} else if ok {
		payload, err := c.FetchEpisode(ctx, KindEpisode, id)
		if err != nil {
			slog.WarnContext(ctx, "fetch with registered episode failed", "id", id, "err", err)
		} else if payload.Bound() {
			span.SetAttributes(attribute.String("via", ViaRegisterToken))
			return payload, Binding{Kind: KindEpisode, Id: id, Via: ViaRegisterToken}, nil
		}
	}

	payload, binding, err = c.bindPass(ctx, code)
	if err != nil {
		span.SetStatus(codes.Error, "all binding strategies exhausted")
		return nil, Binding{}, err
	}
	span.SetAttributes(attribute.String("via", binding.Via))
	return payload, binding, nil
}

func bindingOf(payload *EpisodePayload, via string) Binding {
	binding := Binding{Via: via}
	if payload.Episode != nil && payload.Episode.Id != nil {
		binding.Kind = KindEpisode
		binding.Id = *payload.Episode.Id
	} else if payload.Program != nil && payload.Program.Id != nil {
		binding.Kind = KindProgram
		binding.Id = *payload.Program.Id
	}
	return binding
}
