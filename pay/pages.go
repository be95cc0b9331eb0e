package pay

import (
	"fmt"
	"net/http"
)

// Static result pages shown after the provider redirect. Display only; the
// order state lives in the database, never in the page.

const pageShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
<style>
body { font-family: -apple-system, 'Segoe UI', sans-serif; background: #f5f5f5;
       display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
.card { background: #fff; border-radius: 12px; padding: 40px; max-width: 400px;
        text-align: center; box-shadow: 0 2px 12px rgba(0,0,0,.08); }
.icon { font-size: 56px; }
h1 { font-size: 22px; margin: 16px 0 8px; }
p { color: #555; line-height: 1.5; }
.ref { color: #888; font-size: 14px; margin-top: 16px; }
</style>
</head>
<body>
<div class="card">
<div class="icon">%s</div>
<h1>%s</h1>
<p>%s</p>
%s
</div>
</body>
</html>`

func refLine(ref string) string {
	if ref == "" {
		return ""
	}
	return fmt.Sprintf(`<div class="ref">Order #%s</div>`, ref)
}

func successPage(ref string) string {
	return fmt.Sprintf(pageShell, "Payment Successful", "✅", "Payment Successful!",
		"Thank you! Your order is confirmed. Check WhatsApp for updates.", refLine(ref))
}

func pendingPage(ref string) string {
	return fmt.Sprintf(pageShell, "Payment Processing", "⏳", "Payment Processing",
		"We're confirming your payment. You'll get a WhatsApp message once it goes through.", refLine(ref))
}

func errorPage(ref string) string {
	return fmt.Sprintf(pageShell, "Payment Problem", "❌", "Something Went Wrong",
		"We couldn't match this payment to an order. If you were charged, please contact us on WhatsApp.", refLine(ref))
}

func renderPage(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}
