package browser

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header http.Header
		body   string
		want   BlockType
	}{
		{"cloudflare ray on 403", 403, http.Header{"Cf-Ray": {"abc123"}}, "", BlockCloudflare},
		{"cloudflare server on 503", 503, http.Header{"Server": {"cloudflare"}}, "", BlockCloudflare},
		{"challenge page", 200, http.Header{}, "<html>Checking your browser before accessing</html>", BlockCloudflare},
		{"recaptcha widget", 200, http.Header{}, `<div class="g-recaptcha"></div>`, BlockCaptcha},
		{"google sorry page", 429, http.Header{}, "Our systems have detected unusual traffic from your computer network", BlockCaptcha},
		{"js shell", 200, http.Header{}, "<html><noscript>Enable JavaScript to continue</noscript></html>", BlockJSShell},
		{"meta refresh", 200, http.Header{}, `<meta http-equiv="refresh" content="0;url=/consent">`, BlockJSShell},
		{"article mentioning captchas", 200, http.Header{}, "<article><p>Why captcha fatigue hurts conversion.</p></article>", BlockNone},
		{"clean page", 200, http.Header{}, "<html><body>Chatbots help support teams.</body></html>", BlockNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: tt.header}
			blocked, bt := DetectBlock(resp, []byte(tt.body))
			assert.Equal(t, tt.want != BlockNone, blocked)
			assert.Equal(t, tt.want, bt)
		})
	}
}

func TestDetectBlock_NilResponse(t *testing.T) {
	blocked, bt := DetectBlock(nil, nil)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}
