// Command credsvc runs the anonymous credential service: it loads the
// primary master secret per the configured master_secret_source, wires
// the default authenticator and redemption ledger, and serves the four
// RPC routes over HTTP.
package main

import (
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/anoncred/credsvc/internal/authn"
	"github.com/anoncred/credsvc/internal/config"
	"github.com/anoncred/credsvc/internal/ledger"
	"github.com/anoncred/credsvc/internal/service"
	"github.com/anoncred/credsvc/internal/transport/httpapi"
)

func main() {
	log := logrus.StandardLogger()

	cfg := config.Default()

	masterSecret, err := cfg.LoadMasterSecret()
	if err != nil {
		log.WithError(err).Fatal("failed to load primary master secret")
	}
	masterIsRaw := cfg.MasterIsRaw
	if cfg.MasterSecretSource == config.SourceGenerated || cfg.MasterSecretSource == config.SourceDKG {
		// Both a freshly sampled scalar and a distkey-reconstructed
		// secret are already raw 32-byte scalar encodings, never
		// hash-derived material.
		masterIsRaw = true
	}

	jwtSecret := []byte(os.Getenv(cfg.JWTSecretEnvVar))
	if len(jwtSecret) == 0 {
		log.Warn("no JWT signing secret configured; client authentication will reject every request")
	}

	svc, err := service.New(masterSecret, masterIsRaw, authn.NewBearerJWT(jwtSecret), ledger.NewMemoryLedger())
	if err != nil {
		log.WithError(err).Fatal("failed to initialize credential service")
	}

	api := httpapi.New(svc, log)

	fields := logrus.Fields{
		"address":              cfg.ListenAddress,
		"master_secret_source": string(cfg.MasterSecretSource),
	}
	if cfg.MasterSecretSource == config.SourceDKG {
		fields["threshold"] = cfg.Threshold
		fields["shareholders"] = cfg.Shareholders
	}
	log.WithFields(fields).Info("credsvc starting")

	if err := http.ListenAndServe(cfg.ListenAddress, api.Router()); err != nil {
		log.WithError(err).Fatal("credsvc stopped")
	}
}
