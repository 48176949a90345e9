package live

import (
	"context"
	"fmt"
	"strings"

	"github.com/use-agent/cortex/renderer"
	"github.com/use-agent/cortex/sitemap"
)

// ActResult is the outcome of executing one ACT opcode.
type ActResult struct {
	Success  bool            `json:"success"`
	NewURL   string          `json:"new_url"`
	Features []SparseFeature `json:"features,omitempty"`
}

// Act navigates to url and executes the given opcode/params against the
// rendered page (§4.10 ACT dispatch table).
func Act(ctx context.Context, rc renderer.RenderContext, url string, opcode sitemap.OpCode, params map[string]string) (*ActResult, error) {
	if _, err := rc.Navigate(ctx, url, navigateTimeout); err != nil {
		return nil, err
	}

	js := buildActionScript(opcode, params)
	raw, err := rc.ExecuteJS(ctx, js)
	if err != nil {
		return nil, err
	}

	_, _ = rc.ExecuteJS(ctx, "new Promise(r => setTimeout(r, 1000))")

	newURL := rc.GetURL()

	success := false
	if obj, ok := raw.(map[string]any); ok {
		success, _ = obj["success"].(bool)
	}

	return &ActResult{Success: success, NewURL: newURL}, nil
}

// buildActionScript renders a JS snippet for the given opcode. Unknown
// opcodes return a script that reports failure rather than erroring, so
// callers see {success:false, reason} the same way §4.10 specifies.
func buildActionScript(opcode sitemap.OpCode, params map[string]string) string {
	switch opcode {
	case sitemap.OpClick:
		selector := paramOr(params, "selector", "a")
		return fmt.Sprintf(`(() => {
			const el = document.querySelector('%s');
			if (el) { el.click(); return { success: true }; }
			return { success: false };
		})()`, jsEscape(selector))

	case sitemap.OpAddToCart:
		return `(() => {
			const btn = document.querySelector('[data-action="add-to-cart"], button[name="add-to-cart"], .add-to-cart');
			if (btn) { btn.click(); return { success: true }; }
			const btns = [...document.querySelectorAll('button')].filter(b => /add to cart/i.test(b.textContent));
			if (btns.length) { btns[0].click(); return { success: true }; }
			return { success: false };
		})()`

	case sitemap.OpFillInput:
		selector := paramOr(params, "selector", "input")
		value := paramOr(params, "value", "")
		return fmt.Sprintf(`(() => {
			const el = document.querySelector('%s');
			if (el) {
				el.value = '%s';
				el.dispatchEvent(new Event('input', { bubbles: true }));
				return { success: true };
			}
			return { success: false };
		})()`, jsEscape(selector), jsEscape(value))

	case sitemap.OpSubmitForm:
		selector := paramOr(params, "form_selector", "form")
		return fmt.Sprintf(`(() => {
			const form = document.querySelector('%s');
			if (form) { form.submit(); return { success: true }; }
			return { success: false };
		})()`, jsEscape(selector))

	case sitemap.OpLoginClick:
		return `(() => {
			const btn = document.querySelector('button[type="submit"], input[type="submit"], .login-btn');
			if (btn) { btn.click(); return { success: true }; }
			return { success: false };
		})()`

	default:
		return `(() => { return { success: false, reason: "unsupported opcode" }; })()`
	}
}

func paramOr(params map[string]string, key, fallback string) string {
	if v, ok := params[key]; ok {
		return v
	}
	return fallback
}

func jsEscape(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}
