// Package venue implements the engine's JSON-RPC client against the venue
// and an optional push-notification feed.
//
// Grounded on the teacher's internal/exchange/client.go: a resty-backed
// REST client with a dry-run short-circuit and typed error wrapping,
// generalized here from Polymarket's CLOB REST surface to the venue's
// JSON-RPC methods named in spec.md §6.
package venue

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"

	"mm-engine/pkg/types"
)

// Client is a JSON-RPC client for the venue's RPC surface.
type Client struct {
	http   *resty.Client
	rpcURL string
	dryRun bool
	logger *slog.Logger
}

// NewClient builds a Client against rpcURL. In dry-run mode,
// SendAndConfirmTransaction logs and returns a synthetic signature instead
// of submitting.
func NewClient(rpcURL string, dryRun bool, logger *slog.Logger) *Client {
	return &Client{
		http:   resty.New().SetBaseURL(rpcURL),
		rpcURL: rpcURL,
		dryRun: dryRun,
		logger: logger.With("component", "venue_client"),
	}
}

type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	req := rpcRequest{Jsonrpc: "2.0", ID: 1, Method: method, Params: params}

	var rpcResp rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&rpcResp).
		Post("/")
	if err != nil {
		return fmt.Errorf("venue rpc %s: transport error: %w", method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("venue rpc %s: http status %d", method, resp.StatusCode())
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("venue rpc %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("venue rpc %s: decode result: %w", method, err)
	}
	return nil
}

type accountInfoValue struct {
	Data       [2]string `json:"data"` // [base64, encoding]
	Executable bool      `json:"executable"`
	Lamports   uint64    `json:"lamports"`
}

type accountInfoResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value *accountInfoValue `json:"value"`
}

type multiAccountInfoResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []*accountInfoValue `json:"value"`
}

func decodeAccountValue(v *accountInfoValue, slot uint64) (types.Account, bool, error) {
	if v == nil {
		return types.Account{}, false, nil
	}
	raw, err := base64.StdEncoding.DecodeString(v.Data[0])
	if err != nil {
		return types.Account{}, false, fmt.Errorf("decode account data: %w", err)
	}
	return types.Account{Bytes: raw, Slot: slot}, true, nil
}

// GetMultipleAccountsWithCommitment fetches the given keys in one request.
// Missing entries (account not found) are returned as a false `ok`
// alongside their index rather than an error — callers log and skip,
// matching the original account info service's behavior.
func (c *Client) GetMultipleAccountsWithCommitment(ctx context.Context, keys []types.Pubkey, commitment string) ([]types.Account, []bool, error) {
	encoded := make([]string, len(keys))
	for i, k := range keys {
		encoded[i] = base64.StdEncoding.EncodeToString(k[:])
	}

	var result multiAccountInfoResult
	params := []any{encoded, map[string]any{"commitment": commitment, "encoding": "base64"}}
	if err := c.call(ctx, "getMultipleAccountsWithCommitment", params, &result); err != nil {
		return nil, nil, err
	}

	accounts := make([]types.Account, len(keys))
	ok := make([]bool, len(keys))
	for i, v := range result.Value {
		acc, present, err := decodeAccountValue(v, result.Context.Slot)
		if err != nil {
			c.logger.Warn("skipping malformed account", "index", i, "error", err)
			continue
		}
		if !present {
			c.logger.Warn("account info was missing", "index", i)
			continue
		}
		accounts[i], ok[i] = acc, true
	}
	return accounts, ok, nil
}

// GetAccountWithCommitment fetches a single account.
func (c *Client) GetAccountWithCommitment(ctx context.Context, key types.Pubkey, commitment string) (types.Account, bool, error) {
	var result accountInfoResult
	params := []any{base64.StdEncoding.EncodeToString(key[:]), map[string]any{"commitment": commitment, "encoding": "base64"}}
	if err := c.call(ctx, "getAccountInfoWithCommitment", params, &result); err != nil {
		return types.Account{}, false, err
	}
	return decodeAccountValue(result.Value, result.Context.Slot)
}

type blockhashResult struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Blockhash string `json:"blockhash"`
	} `json:"value"`
}

// GetLatestBlockhashWithCommitment fetches the current nonce/blockhash.
func (c *Client) GetLatestBlockhashWithCommitment(ctx context.Context, commitment string) ([32]byte, error) {
	var result blockhashResult
	params := []any{map[string]any{"commitment": commitment}}
	if err := c.call(ctx, "getLatestBlockhashWithCommitment", params, &result); err != nil {
		return [32]byte{}, err
	}

	raw, err := base64.StdEncoding.DecodeString(result.Value.Blockhash)
	if err != nil || len(raw) != 32 {
		return [32]byte{}, fmt.Errorf("decode blockhash: invalid encoding (err=%v, len=%d)", err, len(raw))
	}
	var hash [32]byte
	copy(hash[:], raw)
	return hash, nil
}

// GetSlot fetches the current slot.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, "getSlot", []any{}, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

type sendTxResult string

// SendAndConfirmTransaction submits a signed transaction and returns its
// signature. In dry-run mode it logs the payload and returns a placeholder
// signature without contacting the venue.
func (c *Client) SendAndConfirmTransaction(ctx context.Context, signedTx []byte) (string, error) {
	if c.dryRun {
		c.logger.Info("dry-run: would submit transaction", "bytes", len(signedTx))
		return "DRYRUN", nil
	}

	encoded := base64.StdEncoding.EncodeToString(signedTx)
	var result sendTxResult
	params := []any{encoded, map[string]any{"encoding": "base64"}}
	if err := c.call(ctx, "sendAndConfirmTransaction", params, &result); err != nil {
		return "", err
	}
	return string(result), nil
}
