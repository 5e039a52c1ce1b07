// Package medbridge scrapes patient exercise programs out of a MedBridge-style
// patient portal. The portal keeps a single implicit "current program" per
// authenticated session and never says outright which program a session is
// bound to, so the Client leans on a chain of weak signals (see Bind).
package medbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"rehabgo/lib/htmlutil"
	"rehabgo/lib/restyutil"
	"rehabgo/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const (
	signInPath       = "/sign_in"
	signOutPath      = "/sign_out"
	accessTokenPath  = "/access_token"
	episodeApiPath   = "/api/v4/plus/episode/episode_with_video_urls"
	episodesListPath = "/api/v4/plus/episodes/"

	// substring identifying workout payload traffic for passive capture
	episodeApiSubstr = "episode_with_video_urls"

	usernameField = "patient[username]"
	passwordField = "patient[password]"
)

var signInFormQuery = htmlutil.FormQuery{
	Id:            "patient-signin-form",
	ActionPattern: regexp.MustCompile(`sign_in|session`),
}

var accessCodeFormQuery = htmlutil.FormQuery{
	Id:            "program-access-token",
	ActionPattern: regexp.MustCompile(`register_token`),
}

// Client owns one isolated portal session: its own cookie jar and its own
// passive capture buffer. One client per program resolution; sharing a client
// across programs lets the server's current-program state bleed between them,
// which is exactly the defect this package exists to avoid. The zero value is
// not usable, and clients must not be copied.
type Client struct {
	baseUrl *url.URL
	http    *resty.Client

	// kept only for the binder's re-authentication pass
	username string
	password string

	captureMu sync.Mutex
	captured  []*EpisodePayload
}

type ClientOptions struct {
	BaseUrl string
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/medbridge/http")
	restyutil.InstrumentClient(client, restyInstrumentOutput)

	c := &Client{
		baseUrl: baseUrl,
		http:    client,
	}
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		c.observePayload(res)
		return nil
	})
	return c, nil
}

func checkStatus(res *resty.Response) error {
	if res.StatusCode() >= 200 && res.StatusCode() < 400 {
		return nil
	}
	return &StatusError{StatusCode: res.StatusCode(), Url: res.Request.URL}
}

// Login performs the sign-in handshake. The portal gives no definite success
// signal at this layer; a bad login only shows up later when binding finds
// nothing. Credentials are held on the client for re-authentication.
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.username = username
	c.password = password
	return c.login(ctx)
}

func (c *Client) login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("set_sign_in", "true").
		Get(signInPath)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch sign in page")
		return err
	}
	if err := checkStatus(res); err != nil {
		span.SetStatus(codes.Error, "sign in page returned an error status")
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse sign in page html")
		return err
	}
	form, err := htmlutil.FindForm(doc, c.baseUrl, signInFormQuery)
	if err != nil {
		span.SetStatus(codes.Error, "could not find sign in form")
		return fmt.Errorf("sign in page: %w", err)
	}

	form.Fields[usernameField] = c.username
	form.Fields[passwordField] = c.password

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(form.Fields).
		Post(form.Action)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit sign in form")
		return err
	}
	return checkStatus(res)
}

// Logout signs the session out so the server drops its current-program state.
// Success and redirect responses both count as signed out.
func (c *Client) Logout(ctx context.Context) error {
	res, err := c.http.R().SetContext(ctx).Get(signOutPath)
	if err != nil {
		return err
	}
	return checkStatus(res)
}

// RegisterToken submits the access code through the portal's form, the same
// flow a patient walks through by hand. Returns the episode id the response
// announced, when there is one.
func (c *Client) RegisterToken(ctx context.Context, code string) (int64, bool, error) {
	ctx, span := tracer.Start(ctx, "client:RegisterToken")
	defer span.End()

	res, err := c.http.R().SetContext(ctx).Get(accessTokenPath)
	if err != nil {
		return 0, false, err
	}
	if err := checkStatus(res); err != nil {
		return 0, false, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return 0, false, err
	}
	form, err := htmlutil.FindForm(doc, c.baseUrl, accessCodeFormQuery)
	if err != nil {
		span.SetStatus(codes.Error, "could not find access code form")
		return 0, false, fmt.Errorf("access code page: %w", err)
	}

	form.Fields["token"] = code
	if _, ok := form.Fields["verify_access_code"]; !ok {
		form.Fields["verify_access_code"] = "Verify Access Code"
	}

	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(form.Fields).
		Post(form.Action)
	if err != nil {
		return 0, false, err
	}
	if err := checkStatus(res); err != nil {
		return 0, false, err
	}

	id, ok := registeredEpisodeId(res)
	return id, ok, nil
}

// registeredEpisodeId mines the register_token response for the id of the
// episode it activated: json body keys first, then the final url's query,
// then ids embedded in the html.
func registeredEpisodeId(res *resty.Response) (int64, bool) {
	contentType := strings.ToLower(res.Header().Get("Content-Type"))
	if strings.Contains(contentType, "json") && len(bytes.TrimSpace(res.Body())) > 0 {
		var data struct {
			EpisodeId *int64   `json:"episode_id"`
			ProgramId *int64   `json:"program_id"`
			Episode   *Episode `json:"episode"`
			Program   *Program `json:"program"`
		}
		if err := json.Unmarshal(res.Body(), &data); err == nil {
			candidates := []*int64{data.EpisodeId}
			if data.Episode != nil {
				candidates = append(candidates, data.Episode.Id)
			}
			candidates = append(candidates, data.ProgramId)
			if data.Program != nil {
				candidates = append(candidates, data.Program.Id)
			}
			for _, id := range candidates {
				if id != nil {
					return *id, true
				}
			}
		}
	}

	if res.RawResponse != nil && res.RawResponse.Request != nil {
		query := res.RawResponse.Request.URL.Query()
		for _, key := range []string{"episode_id", "episode_id[]", "id"} {
			value := query.Get(key)
			if value == "" {
				continue
			}
			id, err := strconv.ParseInt(value, 10, 64)
			if err == nil {
				return id, true
			}
		}
	}

	if id, kind, ok := scrapeIdentifier(res.String(), ""); ok && kind == KindEpisode {
		return id, true
	}
	return 0, false
}

// CurrentEpisodeId asks the episodes list which episode the session is on.
// Only trusted when the list holds exactly one entry; anything else is too
// ambiguous to bind with.
func (c *Client) CurrentEpisodeId(ctx context.Context) (int64, bool) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(episodesListPath)
	if err != nil || checkStatus(res) != nil {
		return 0, false
	}

	var data struct {
		Episodes []struct {
			Id *int64 `json:"id"`
		} `json:"episodes"`
	}
	if err := json.Unmarshal(res.Body(), &data); err != nil {
		return 0, false
	}
	if len(data.Episodes) == 1 && data.Episodes[0].Id != nil {
		return *data.Episodes[0].Id, true
	}
	return 0, false
}

// FetchEpisode requests the workout payload, qualified by an episode or
// program id when kind is non-empty, otherwise relying on the session's
// implicit current program.
func (c *Client) FetchEpisode(ctx context.Context, kind BindKind, id int64) (*EpisodePayload, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("old_versions", "1")
	if kind != "" {
		req.SetQueryParam(fmt.Sprintf("%s_id", kind), strconv.FormatInt(id, 10))
	}

	res, err := req.Get(episodeApiPath)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(res); err != nil {
		return nil, err
	}

	var payload EpisodePayload
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}
	return &payload, nil
}

// observePayload passively records workout payloads flowing through the
// session, no matter which request triggered them. Used as the binder's last
// resort.
func (c *Client) observePayload(res *resty.Response) {
	if !strings.Contains(res.Request.URL, episodeApiSubstr) {
		return
	}
	if res.StatusCode() != 200 {
		return
	}
	var payload EpisodePayload
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return
	}
	if !payload.Bound() {
		return
	}
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	c.captured = append(c.captured, &payload)
}

func (c *Client) lastCaptured() *EpisodePayload {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	if len(c.captured) == 0 {
		return nil
	}
	return c.captured[len(c.captured)-1]
}

func (c *Client) clearCaptured() {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	c.captured = nil
}
