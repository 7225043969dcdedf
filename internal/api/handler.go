// Package api serves persisted grid-search results over HTTP so analysis
// tooling can browse batches without filesystem access.
package api

import (
	"GuardBench/internal/model"
	"GuardBench/internal/results"
	"encoding/json"
	"math"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

// Handler exposes the result files under one directory.
type Handler struct {
	dir string
}

// NewHandler creates a handler for the given results directory.
func NewHandler(dir string) *Handler {
	return &Handler{dir: dir}
}

// Register attaches the API routes to the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/api/v1/results", h.listResults).Methods("GET")
	r.HandleFunc("/api/v1/results/{name}", h.getResult).Methods("GET")
	r.HandleFunc("/api/v1/results/{name}/summary", h.getSummary).Methods("GET")
}

// batchInfo describes one result file in the listing.
type batchInfo struct {
	File        string `json:"file"`
	Location    string `json:"location"`
	DstAddr     string `json:"dst_addr"`
	AttackerBPS uint64 `json:"attacker_bps"`
	SizeBytes   int64  `json:"size_bytes"`
}

func (h *Handler) listResults(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	batches := make([]batchInfo, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		location, dstAddr, bps, ok := results.ParseFileName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		batches = append(batches, batchInfo{
			File:        entry.Name(),
			Location:    location,
			DstAddr:     dstAddr.String(),
			AttackerBPS: bps,
			SizeBytes:   info.Size(),
		})
	}
	writeJSON(w, batches)
}

func (h *Handler) getResult(w http.ResponseWriter, r *http.Request) {
	name, ok := h.resultPath(w, r)
	if !ok {
		return
	}
	http.ServeFile(w, r, name)
}

// batchSummary aggregates one batch for quick inspection.
type batchSummary struct {
	File         string                   `json:"file"`
	Pairs        int                      `json:"pairs"`
	AvgFPR       float64                  `json:"avg_fpr"`
	AvgFNR       float64                  `json:"avg_fnr"`
	BestF1       float64                  `json:"best_f1"`
	BestF1Config *model.DataConfiguration `json:"best_f1_config,omitempty"`
}

func (h *Handler) getSummary(w http.ResponseWriter, r *http.Request) {
	path, ok := h.resultPath(w, r)
	if !ok {
		return
	}
	pairs, err := results.Read(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	summary := batchSummary{File: filepath.Base(path), Pairs: len(pairs)}
	var fprSum, fnrSum float64
	var fprN, fnrN int
	for i, pair := range pairs {
		if fpr := pair.Results.FPR(); !math.IsNaN(fpr) {
			fprSum += fpr
			fprN++
		}
		if fnr := pair.Results.FNR(); !math.IsNaN(fnr) {
			fnrSum += fnr
			fnrN++
		}
		if f1 := pair.Results.F1Score(); !math.IsNaN(f1) && (summary.BestF1Config == nil || f1 > summary.BestF1) {
			summary.BestF1 = f1
			summary.BestF1Config = &pairs[i].Config
		}
	}
	if fprN > 0 {
		summary.AvgFPR = fprSum / float64(fprN)
	}
	if fnrN > 0 {
		summary.AvgFNR = fnrSum / float64(fnrN)
	}
	writeJSON(w, summary)
}

// resultPath validates the requested file name and resolves it inside the
// results directory. Only names matching the result-file pattern are served.
func (h *Handler) resultPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := mux.Vars(r)["name"]
	if _, _, _, ok := results.ParseFileName(name); !ok || filepath.Base(name) != name {
		http.NotFound(w, r)
		return "", false
	}
	path := filepath.Join(h.dir, name)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return "", false
	}
	return path, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode API response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	log.Error("API request failed", "error", err)
	http.Error(w, err.Error(), status)
}
