package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rangestaker/config"
	"rangestaker/native/staker"
	"rangestaker/rpc"
)

const (
	tokenCommand       = "token"
	incentiveIDCommand = "incentive-id"
	callCommand        = "call"
	defaultConfig      = "./config.toml"
	defaultURL         = "http://127.0.0.1:8547/"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case tokenCommand:
		err = runToken(os.Args[2:], os.Stdout)
	case incentiveIDCommand:
		err = runIncentiveID(os.Args[2:], os.Stdout)
	case callCommand:
		err = runCall(os.Args[2:], os.Stdout)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: stakerctl <%s|%s|%s> [flags]\n", tokenCommand, incentiveIDCommand, callCommand)
}

// runToken mints a bearer token for a caller using the daemon's shared secret.
func runToken(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(tokenCommand, flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the stakerd config file")
	caller := fs.String("caller", "", "Address the token authenticates as")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !common.IsHexAddress(*caller) {
		return fmt.Errorf("invalid caller address %q", *caller)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	auth, err := rpc.NewAuthenticator(os.Getenv(cfg.RPC.JWTSecretEnv), cfg.RPC.JWTIssuer)
	if err != nil {
		return fmt.Errorf("%w (set %s)", err, cfg.RPC.JWTSecretEnv)
	}
	token, err := auth.Issue(common.HexToAddress(*caller), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// runIncentiveID derives an incentive id offline.
func runIncentiveID(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(incentiveIDCommand, flag.ContinueOnError)
	rewardToken := fs.String("reward-token", "", "Reward token address")
	poolAddr := fs.String("pool", "", "Pool address")
	start := fs.Uint64("start", 0, "Start time (unix seconds)")
	end := fs.Uint64("end", 0, "End time (unix seconds)")
	refundee := fs.String("refundee", "", "Refundee address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	for name, value := range map[string]string{"reward-token": *rewardToken, "pool": *poolAddr, "refundee": *refundee} {
		if !common.IsHexAddress(value) {
			return fmt.Errorf("invalid %s address %q", name, value)
		}
	}
	key := staker.IncentiveKey{
		RewardToken: common.HexToAddress(*rewardToken),
		Pool:        common.HexToAddress(*poolAddr),
		StartTime:   *start,
		EndTime:     *end,
		Refundee:    common.HexToAddress(*refundee),
	}
	_, err := fmt.Fprintln(out, key.ID().Hex())
	return err
}

// runCall sends one JSON-RPC request and prints the raw response.
func runCall(args []string, out io.Writer) error {
	fs := flag.NewFlagSet(callCommand, flag.ContinueOnError)
	url := fs.String("url", defaultURL, "stakerd JSON-RPC endpoint")
	token := fs.String("token", os.Getenv("STAKER_TOKEN"), "Bearer token for mutating methods")
	method := fs.String("method", "", "Method name, e.g. staker_getAllIncentives")
	params := fs.String("params", "", "Parameter object as JSON")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*method) == "" {
		return fmt.Errorf("method is required")
	}
	body, err := buildRequest(*method, *params)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(*token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(*token))
	}
	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

func buildRequest(method, params string) ([]byte, error) {
	req := map[string]interface{}{"jsonrpc": "2.0", "id": 1, "method": method}
	if trimmed := strings.TrimSpace(params); trimmed != "" {
		if !json.Valid([]byte(trimmed)) {
			return nil, fmt.Errorf("params is not valid JSON")
		}
		req["params"] = []json.RawMessage{json.RawMessage(trimmed)}
	}
	return json.Marshal(req)
}
