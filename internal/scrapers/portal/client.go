package portal

import (
	"math"
	"net/http"

	"portalproxy-backend/internal/components/telemetry"
	"portalproxy-backend/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// newHttpClient creates the client used for one request. Cookies and redirects are
// never handled by the client itself, each hop is made explicitly so its cookies can be
// collected.
func (p *Portal) newHttpClient() *resty.Client {
	httpClient := resty.New()
	httpClient.SetTimeout(p.config.timeout())
	httpClient.SetCookieJar(nil)
	httpClient.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", p.config.userAgent())
	// keeps the bypass transport from asking for encodings resty can't decode
	httpClient.SetHeader("accept-encoding", "gzip")

	rps := p.config.requestsPerSecond()
	rateLimiter := rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, p.tel)
	restyutil.InstrumentClient(httpClient, tracer, p.dump)

	return httpClient
}
