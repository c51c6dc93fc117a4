package secretstore

import (
	"reflect"
	"sync"
	"testing"

	"travelsec/internal/config"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) string { return m[key] }
}

func TestCronSecretsMergeAndDedupe(t *testing.T) {
	a := NewWithLookup(config.Security{CronSecrets: []string{" alpha ", "", "beta"}}, envMap(map[string]string{
		EnvCronSecret:             "beta",
		EnvNotificationCronSecret: "  gamma\n",
	}))

	want := []string{"alpha", "beta", "gamma"}
	if got := a.CronSecrets(); !reflect.DeepEqual(got, want) {
		t.Errorf("CronSecrets() = %v, want %v", got, want)
	}
}

func TestNoSecretsConfigured(t *testing.T) {
	a := NewWithLookup(config.Security{}, nil)

	if len(a.CronSecrets()) != 0 {
		t.Errorf("CronSecrets() = %v, want empty", a.CronSecrets())
	}
	if a.SigningSecret() != "" || a.OAuthStateSecret() != "" || a.CSRFToken() != "" {
		t.Error("expected every secret to be empty")
	}
	if a.IsProduction() {
		t.Error("expected non-production")
	}
}

func TestFallbackChains(t *testing.T) {
	tests := []struct {
		name        string
		sec         config.Security
		env         map[string]string
		wantSigning string
		wantOAuth   string
	}{
		{
			name:        "config wins",
			sec:         config.Security{SigningSecret: "cfg", OAuthStateSecret: "state"},
			env:         map[string]string{EnvCronSigningSecret: "env"},
			wantSigning: "cfg",
			wantOAuth:   "state",
		},
		{
			name:        "cron signing before notification signing",
			env:         map[string]string{EnvCronSigningSecret: "cron", EnvNotificationSigning: "notif"},
			wantSigning: "cron",
			wantOAuth:   "cron",
		},
		{
			name:        "notification signing",
			env:         map[string]string{EnvNotificationSigning: "notif"},
			wantSigning: "notif",
			wantOAuth:   "notif",
		},
		{
			name:      "oauth state from nextauth",
			env:       map[string]string{EnvNextAuthSecret: "nextauth"},
			wantOAuth: "nextauth",
		},
		{
			name:        "oauth state secret before signing",
			env:         map[string]string{EnvOAuthStateSecret: "social", EnvCronSigningSecret: "cron"},
			wantSigning: "cron",
			wantOAuth:   "social",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewWithLookup(tt.sec, envMap(tt.env))
			if got := a.SigningSecret(); got != tt.wantSigning {
				t.Errorf("SigningSecret() = %q, want %q", got, tt.wantSigning)
			}
			if got := a.OAuthStateSecret(); got != tt.wantOAuth {
				t.Errorf("OAuthStateSecret() = %q, want %q", got, tt.wantOAuth)
			}
		})
	}
}

func TestTokenKeyAndProduction(t *testing.T) {
	a := NewWithLookup(config.Security{}, envMap(map[string]string{
		EnvTokenEncryptionKey:  " key ",
		EnvTokenFallbackSecret: "meta",
		EnvNodeEnv:             "production",
		EnvCSRFToken:           "csrf",
	}))

	if a.TokenEncryptionKey() != "key" {
		t.Errorf("TokenEncryptionKey() = %q", a.TokenEncryptionKey())
	}
	if a.TokenKeyFallbackSecret() != "meta" {
		t.Errorf("TokenKeyFallbackSecret() = %q", a.TokenKeyFallbackSecret())
	}
	if !a.IsProduction() {
		t.Error("NODE_ENV=production should mark production")
	}
	if a.CSRFToken() != "csrf" {
		t.Errorf("CSRFToken() = %q", a.CSRFToken())
	}

	b := NewWithLookup(config.Security{Environment: "Production"}, nil)
	if !b.IsProduction() {
		t.Error("configured environment should mark production")
	}
}

func TestUpdateSwapsSnapshot(t *testing.T) {
	a := NewWithLookup(config.Security{CronSecrets: []string{"old"}}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if n := len(a.CronSecrets()); n != 1 {
					t.Errorf("observed %d secrets mid-update", n)
					return
				}
			}
		}()
	}
	a.Update(config.Security{CronSecrets: []string{"new"}})
	wg.Wait()

	if got := a.CronSecrets(); len(got) != 1 || got[0] != "new" {
		t.Errorf("CronSecrets() = %v, want [new]", got)
	}
}

func TestDiagnosticsHidesValues(t *testing.T) {
	a := NewWithLookup(config.Security{CronSecrets: []string{"s"}}, nil)
	d := a.Diagnostics()

	if !d["cron_secret_configured"] {
		t.Error("cron secret should be reported configured")
	}
	if d["signing_secret_configured"] {
		t.Error("signing secret should be reported missing")
	}
}
