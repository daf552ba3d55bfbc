// internal/adapters/in/http/handlers/winner_handler.go
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	qrSize           = 256
)

// WinnerQuery は MintStateTracker の読み取り・宣言面。
type WinnerQuery interface {
	Declare(ctx context.Context, in windom.NewWinnerInput, info windom.ChampionInfo) (windom.WinnerRecord, error)
	Get(ctx context.Context, winnerID string) (windom.WinnerRecord, error)
	List(ctx context.Context, f windom.ListFilter) ([]windom.WinnerRecord, error)
	ListByWallet(ctx context.Context, wallet string) ([]windom.WinnerRecord, error)
}

// MintRunner は Orchestrator の同期実行面。
type MintRunner interface {
	MintForWinner(ctx context.Context, winnerID string) (mintdom.Result, error)
	Retry(ctx context.Context, winnerID string) (mintdom.Result, error)
}

// MintDispatcher は非同期 mint の投入口。
type MintDispatcher interface {
	Dispatch(winnerID string) error
}

// RecipientValidator は宣言時に受取アドレスを早期検証する（任意）。
type RecipientValidator interface {
	ValidateRecipient(address string) error
}

type WinnerHandler struct {
	winners    WinnerQuery
	runner     MintRunner
	dispatcher MintDispatcher
	recipients RecipientValidator
	cluster    string

	now func() time.Time
}

func NewWinnerHandler(
	winners WinnerQuery,
	runner MintRunner,
	dispatcher MintDispatcher,
	recipients RecipientValidator,
	cluster string,
) *WinnerHandler {
	return &WinnerHandler{
		winners:    winners,
		runner:     runner,
		dispatcher: dispatcher,
		recipients: recipients,
		cluster:    strings.TrimSpace(cluster),
		now:        time.Now,
	}
}

// Register mounts the winner routes. protect wraps mutating routes (auth).
func (h *WinnerHandler) Register(r chi.Router, protect func(http.Handler) http.Handler) {
	r.Route("/winners", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/by-wallet/{wallet}", h.listByWallet)
		r.Get("/{id}", h.get)
		r.Get("/{id}/qr.png", h.qr)

		r.Group(func(r chi.Router) {
			if protect != nil {
				r.Use(protect)
			}
			r.Post("/", h.declare)
			r.Post("/{id}/mint", h.mint)
			r.Post("/{id}/retry", h.retry)
		})
	})
}

// POST /winners
// 宣言してから mint をバックグラウンドに投入し、202 を返す。
func (h *WinnerHandler) declare(w http.ResponseWriter, r *http.Request) {
	var req declareRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if h.recipients != nil {
		if err := h.recipients.ValidateRecipient(strings.TrimSpace(req.RecipientWalletAddress)); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rec, err := h.winners.Declare(r.Context(), req.NewWinnerInput, req.ChampionInfo)
	if err != nil {
		log.Printf("[winner_handler] declare FAILED winner=%s err=%v", req.WinnerID, err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	if h.dispatcher != nil {
		if err := h.dispatcher.Dispatch(rec.WinnerID); err != nil {
			// 宣言済みなので sweeper が拾う
			log.Printf("[winner_handler] dispatch FAILED winner=%s err=%v", rec.WinnerID, err)
		}
	}

	writeJSON(w, http.StatusAccepted, toWinnerView(rec, h.now()))
}

// GET /winners?stage=Declared,Failed&tournament_id=...&limit=50
func (h *WinnerHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var stages []windom.Stage
	for _, s := range splitCSV(q.Get("stage")) {
		st, err := windom.ParseStage(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid stage: "+s)
			return
		}
		stages = append(stages, st)
	}

	limit := parseIntDefault(q.Get("limit"), defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}

	recs, err := h.winners.List(r.Context(), windom.ListFilter{
		Stages:       stages,
		TournamentID: strings.TrimSpace(q.Get("tournament_id")),
		Limit:        limit,
	})
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toWinnerViews(recs, h.now()))
}

// GET /winners/by-wallet/{wallet}
func (h *WinnerHandler) listByWallet(w http.ResponseWriter, r *http.Request) {
	wallet := strings.TrimSpace(chi.URLParam(r, "wallet"))
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "wallet is empty")
		return
	}
	recs, err := h.winners.ListByWallet(r.Context(), wallet)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toWinnerViews(recs, h.now()))
}

// GET /winners/{id}
func (h *WinnerHandler) get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.winners.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toWinnerView(rec, h.now()))
}

// POST /winners/{id}/mint
// パイプラインの失敗は 200 + status=failed（リクエスト自体は成功）。
func (h *WinnerHandler) mint(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, "mint", h.runner.MintForWinner)
}

// POST /winners/{id}/retry
func (h *WinnerHandler) retry(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, "retry", h.runner.Retry)
}

func (h *WinnerHandler) runSync(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(ctx context.Context, winnerID string) (mintdom.Result, error),
) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	res, err := fn(r.Context(), id)
	if err != nil {
		log.Printf("[winner_handler] %s FAILED winner=%s err=%v", op, id, err)
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /winners/{id}/qr.png
// Minted のレコードだけ explorer URL の QR を返す。
func (h *WinnerHandler) qr(w http.ResponseWriter, r *http.Request) {
	rec, err := h.winners.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if rec.Stage != windom.StageMinted || rec.TokenID == "" {
		writeError(w, http.StatusConflict, "winner is not minted yet")
		return
	}

	png, err := qrcode.Encode(ExplorerURL(rec.TokenID, h.cluster), qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// ExplorerURL returns the Solana Explorer page of a mint address.
// mainnet-beta はクエリなし。
func ExplorerURL(tokenID, cluster string) string {
	u := "https://explorer.solana.com/address/" + url.PathEscape(tokenID)
	if cluster != "" && cluster != "mainnet-beta" {
		u += "?cluster=" + url.QueryEscape(cluster)
	}
	return u
}
