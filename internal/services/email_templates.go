package services

import "fmt"

// Branded HTML bodies for outbound mail. Inline styles only, since most mail
// clients strip <style> blocks.

const (
	subjectVerifyAccount = "Verify your ListenMe account"
	subjectLoginCode     = "Your ListenMe login code"
	subjectPasswordReset = "Reset your ListenMe password"
)

func emailShell(content string) string {
	return fmt.Sprintf(`
    <div style="font-family:'Helvetica Neue',Arial,sans-serif;max-width:520px;margin:auto;
                background:#0d0d18;color:#e2e8f0;border-radius:16px;overflow:hidden;">
      <div style="background:linear-gradient(135deg,#7c3aed,#ec4899);padding:32px 40px;">
        <h1 style="margin:0;font-size:26px;font-weight:900;letter-spacing:-0.5px;color:#fff;">
          🎧 ListenMe
        </h1>
        <p style="margin:6px 0 0;font-size:13px;color:rgba(255,255,255,0.7);">
          Your personal music streaming space
        </p>
      </div>
      <div style="padding:36px 40px;">%s</div>
      <div style="padding:20px 40px;border-top:1px solid #1e1e2e;font-size:12px;color:#475569;">
        ListenMe · Secure · Private · Yours
      </div>
    </div>`, content)
}

func codePanel(label, code string) string {
	return fmt.Sprintf(`
          <div style="background:#14141f;border:1px solid #1e1e2e;border-radius:12px;
                      padding:28px;text-align:center;margin-bottom:28px;">
            <p style="color:#64748b;margin:0 0 10px;font-size:13px;text-transform:uppercase;letter-spacing:2px;">
              %s
            </p>
            <div style="font-size:42px;font-weight:900;letter-spacing:14px;color:#a78bfa;">%s</div>
          </div>`, label, code)
}

func verificationEmailBody(name, code string) string {
	content := fmt.Sprintf(`
          <p style="font-size:18px;font-weight:700;margin:0 0 8px;">Welcome to ListenMe, %s! 🎶</p>
          <p style="color:#94a3b8;margin:0 0 28px;">Please verify your email to start listening.</p>
          %s
          <p style="color:#475569;font-size:13px;">Expires in 10 minutes.</p>`,
		name, codePanel("Verification Code", code))
	return emailShell(content)
}

func loginCodeEmailBody(name, code string) string {
	content := fmt.Sprintf(`
          <p style="font-size:18px;font-weight:700;margin:0 0 8px;">Welcome back, %s!</p>
          <p style="color:#94a3b8;margin:0 0 28px;">Enter this code to finish signing in.</p>
          %s
          <p style="color:#475569;font-size:13px;">
            Expires in 10 minutes.<br/>
            If you didn't try to sign in, change your password right away.
          </p>`,
		name, codePanel("Login Code", code))
	return emailShell(content)
}

func passwordResetEmailBody(name, resetLink string) string {
	content := fmt.Sprintf(`
          <p style="font-size:18px;font-weight:700;margin:0 0 8px;">Reset your password</p>
          <p style="color:#94a3b8;margin:0 0 28px;">
            Hi %s, we received a request to reset your password.
          </p>
          <div style="text-align:center;margin:32px 0;">
            <a href="%s"
               style="background:linear-gradient(135deg,#7c3aed,#6d28d9);color:#fff;
                      padding:16px 40px;border-radius:50px;text-decoration:none;
                      font-weight:700;font-size:16px;display:inline-block;">
              Reset My Password →
            </a>
          </div>
          <p style="color:#475569;font-size:13px;">
            This link expires in <strong style="color:#e2e8f0;">1 hour</strong>.<br/>
            If you didn't request this, just ignore this email.
          </p>`,
		name, resetLink)
	return emailShell(content)
}
