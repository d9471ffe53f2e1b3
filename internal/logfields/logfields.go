package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID     = "build_id"
	KeyPlan        = "plan"
	KeyStage       = "stage"
	KeyCategory    = "category"
	KeyAsset       = "asset"
	KeyFingerprint = "fingerprint"
	KeyPath        = "path"
	KeyCount       = "count"
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
	KeyScope       = "scope"
	KeyOp          = "op"
	KeyTrigger     = "trigger"
	KeyClients     = "clients"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Plan(name string) slog.Attr      { return slog.String(KeyPlan, name) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Category(c string) slog.Attr     { return slog.String(KeyCategory, c) }
func Asset(logical string) slog.Attr  { return slog.String(KeyAsset, logical) }
func Fingerprint(fp string) slog.Attr { return slog.String(KeyFingerprint, fp) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Scope(s string) slog.Attr        { return slog.String(KeyScope, s) }
func Op(op string) slog.Attr          { return slog.String(KeyOp, op) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func Clients(n int) slog.Attr         { return slog.Int(KeyClients, n) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
