package pages

import (
	"bytes"
	"html/template"

	"github.com/smallbiznis/periodpay/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("pages",
	fx.Provide(NewRenderer),
)

const resultHTMLTemplate = `<!doctype html>
<html lang="zh-Hant">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.Title}}</title>
  <style>
    * { box-sizing: border-box; }
    body {
      margin: 0;
      padding: 40px 16px;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
      color: #1a1f36;
      background: #f7f9fc;
      -webkit-font-smoothing: antialiased;
    }
    .card {
      background: #ffffff;
      max-width: 520px;
      margin: 0 auto;
      padding: 48px 40px;
      box-shadow: 0 2px 5px rgba(0,0,0,0.04);
      border-radius: 4px;
      text-align: center;
    }
    h1 { margin: 0 0 16px; font-size: 24px; }
    h1.success { color: #0e8a4f; }
    h1.failed { color: #c0392b; }
    p { margin: 0 0 32px; line-height: 1.6; color: #4f566b; }
    a.button {
      display: inline-block;
      padding: 10px 28px;
      border-radius: 4px;
      background: #1a1f36;
      color: #ffffff;
      text-decoration: none;
      font-weight: 600;
    }
  </style>
</head>
<body>
  <div class="card">
    <h1 class="{{.Kind}}">{{.Title}}</h1>
    <p>{{.Description}}</p>
    <a class="button" href="{{.Href}}">返回</a>
  </div>
</body>
</html>
`

type Kind string

const (
	KindSuccess Kind = "success"
	KindFailed  Kind = "failed"
)

// Page is the data behind a payment result page.
type Page struct {
	Kind        Kind
	Title       string
	Description string
	Href        string
}

// Renderer produces the browser-facing payment result pages.
type Renderer struct {
	tpl       *template.Template
	returnURL string
}

func NewRenderer(cfg config.Config) *Renderer {
	return &Renderer{
		tpl:       template.Must(template.New("payment-result").Parse(resultHTMLTemplate)),
		returnURL: cfg.ClientReturnURL,
	}
}

func (r *Renderer) Page(kind Kind) Page {
	switch kind {
	case KindSuccess:
		return Page{
			Kind:        KindSuccess,
			Title:       "付款成功",
			Description: "付款已經成功！請點擊返回按鈕",
			Href:        r.returnURL,
		}
	default:
		return Page{
			Kind:        KindFailed,
			Title:       "付款失敗",
			Description: "因金流服務異常導致付款失敗，請儘速洽詢管理員並提供詳細資訊以利排查，造成您的不便，非常抱歉！",
			Href:        r.returnURL,
		}
	}
}

func (r *Renderer) Render(kind Kind) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, r.Page(kind)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
