// Command match-client signs and submits synthetic match results. It is a
// smoke and load tool for a running reward-server.
package main

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"match-reward-engine/internal/config"
	"match-reward-engine/internal/match"
	"match-reward-engine/internal/signature"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatal().Err(err).Msg("load client config failed")
	}
	key, err := loadKey(cfg.PrivateKeyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("load private key failed")
	}
	if !match.IsSupportedPlayerCount(cfg.PlayerCount) {
		log.Fatal().Int("player_count", cfg.PlayerCount).Msg("unsupported player count")
	}
	log.Info().Str("wallet", signature.Address(key)).Str("server", cfg.ServerURL).Msg("submitting matches")

	httpClient := &http.Client{Timeout: 10 * time.Second}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < cfg.Matches; i++ {
		sub, err := randomSubmission(rnd, key, cfg.PlayerCount)
		if err != nil {
			log.Fatal().Err(err).Msg("build submission failed")
		}
		status, body, err := submit(httpClient, cfg.ServerURL, sub)
		if err != nil {
			log.Error().Err(err).Str("match_id", sub.MatchID).Msg("submit failed")
			continue
		}
		log.Info().Int("status", status).Str("match_id", sub.MatchID).RawJSON("response", body).Msg("submitted")
	}
}

func loadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	if hexKey == "" {
		log.Warn().Msg("CLIENT_PRIVATE_KEY not set, using a throwaway key")
		return crypto.GenerateKey()
	}
	return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
}

func randomSubmission(rnd *rand.Rand, key *ecdsa.PrivateKey, players int) (match.Submission, error) {
	placement := 1 + rnd.Intn(players)
	durationMs := int64(60_000 + rnd.Intn(240_000))
	sub := match.Submission{
		Wallet:      signature.Address(key),
		MatchID:     "match-" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Placement:   placement,
		PlayerCount: players,
		DurationMs:  durationMs,
		Kills:       rnd.Intn(players - placement + 1),
		AntiCheat: match.AntiCheat{
			InputHash:           uuid.NewString(),
			FrameCount:          durationMs * 60 / 1000,
			AvgTickRate:         58 + rnd.Float64()*4,
			InputTimingVariance: 40 + rnd.Float64()*120,
			MovementHash:        uuid.NewString(),
		},
		Timestamp: time.Now().UnixMilli(),
		Nonce:     strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
	sig, err := signature.Sign(key, sub.SigningMessage())
	if err != nil {
		return match.Submission{}, err
	}
	sub.Signature = sig
	return sub, nil
}

func submit(c *http.Client, baseURL string, sub match.Submission) (int, []byte, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.Post(strings.TrimRight(baseURL, "/")+"/api/matches/submit", "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if !json.Valid(body) {
		return resp.StatusCode, nil, fmt.Errorf("non-json response: %q", body)
	}
	return resp.StatusCode, body, nil
}
