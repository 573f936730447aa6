/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

// go-encoder API
//
// # RESTful APIs to interact with go-encoder cards
//
// Schemes: http
// Host: localhost:8000
// Version: 1.0.0
//
//	Consumes:
//	- application/json
//
//	Produces:
//	- application/json
//
// swagger:meta
package control

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/layers"
	"jinr.ru/greenlab/go-encoder/pkg/log"
	"jinr.ru/greenlab/go-encoder/pkg/regmap"
	"jinr.ru/greenlab/go-encoder/pkg/srv"
	"jinr.ru/greenlab/go-encoder/pkg/srv/control/ifc"
)

//go:embed swagger.json
var swaggerJSON []byte

// RegHex ...
type RegHex struct {
	Addr  string // hexadecimal
	Value string // hexadecimal
}

type IndexEnableSetup struct {
	Enable bool
}

type ResetSetup struct {
	Reset bool
}

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	ctrl    ifc.ControlServer
	handler http.Handler
}

var _ ifc.ApiServer = &ApiServer{}

func NewApiServer(ctx context.Context, cfg *config.Config, ctrl ifc.ControlServer) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s port: %d", cfg.Control.IP, cfg.Control.ApiPort)

	if _, err := loads.Analyzed(swaggerJSON, ""); err != nil {
		return nil, fmt.Errorf("API description: %w", err)
	}

	s := &ApiServer{
		Context: ctx,
		Config:  cfg,
		ctrl:    ctrl,
	}
	s.configureRouter()
	return s, nil
}

// recoveryLogger sends panics recovered by the HTTP stack to the error log
type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	log.Error("%s", fmt.Sprint(v...))
}

// Handler returns the router wrapped with API docs, access log and panic recovery
func (s *ApiServer) Handler() http.Handler {
	return s.handler
}

func (s *ApiServer) Run() error {
	log.Info("Starting API server: address: %s port: %d", s.Config.Control.IP, s.Config.Control.ApiPort)
	httpServer := &http.Server{
		Handler: s.handler,
		Addr:    fmt.Sprintf("%s:%d", s.Config.Control.IP, s.Config.Control.ApiPort),
	}
	go func() {
		<-s.Context.Done()
		httpServer.Close()
	}()
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return s.Context.Err()
	}
	return err
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	// swagger:operation GET /reg/r/{card}/{addr} read register
	subRouter.HandleFunc("/reg/r/{card}/{addr:0x[0-9a-fA-F]+}", s.handleRegRead()).Methods("GET")
	// swagger:operation GET /reg/r/{card} read all registers
	subRouter.HandleFunc("/reg/r/{card}", s.handleRegReadAll()).Methods("GET")
	// swagger:operation POST /reg/w/{card} write register
	subRouter.HandleFunc("/reg/w/{card}", s.handleRegWrite()).Methods("POST")
	subRouter.HandleFunc("/encoder/{card}", s.handleEncoders()).Methods("GET")
	subRouter.HandleFunc("/encoder/{card}/{index:[0-9]+}", s.handleEncoder()).Methods("GET")
	subRouter.HandleFunc("/encoder/{card}/{index:[0-9]+}/index_enable", s.handleIndexEnable()).Methods("POST")
	subRouter.HandleFunc("/encoder/{card}/{index:[0-9]+}/ack", s.handleAck()).Methods("POST")
	subRouter.HandleFunc("/reset/{card}", s.handleReset()).Methods("POST")
	subRouter.HandleFunc("/regmap/{card}", s.handleRegMap()).Methods("GET")

	docs := middleware.Redoc(middleware.RedocOpts{
		BasePath: "/",
		Path:     "docs",
		SpecURL:  "/swagger.json",
		Title:    "go-encoder API",
	}, middleware.Spec("/", swaggerJSON, s.Router))
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(true),
	)
	s.handler = recovery(handlers.LoggingHandler(log.Writer(), docs))
}

// httpStatus maps an error of the control server to an HTTP status code
func httpStatus(err error) int {
	var (
		cardNotFound    config.ErrCardNotFound
		encoderNotFound ErrEncoderNotFound
		notCached       ErrNotCached
		badAddress      regmap.ErrBadAddress
		readOnly        regmap.ErrReadOnly
		timeout         ErrTimeout
	)
	switch {
	case errors.As(err, &cardNotFound), errors.As(err, &encoderNotFound),
		errors.As(err, &notCached), errors.As(err, &badAddress):
		return http.StatusNotFound
	case errors.As(err, &readOnly):
		return http.StatusBadRequest
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func httpError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), httpStatus(err))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Error while encoding response: %s", err)
	}
}

func regsHex(regs []*layers.Reg) []*RegHex {
	result := make([]*RegHex, 0, len(regs))
	for _, reg := range regs {
		hexAddr, hexValue := reg.Hex()
		result = append(result, &RegHex{Addr: hexAddr, Value: hexValue})
	}
	return result
}

func encoderIndex(vars map[string]string) (int, error) {
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		return 0, srv.ErrUnknownOperation{What: fmt.Sprintf("wrong encoder index %q", vars["index"])}
	}
	return index, nil
}

func (s *ApiServer) handleRegRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		log.Debug("Handling reg read request: card: %s, addr: %s", vars["card"], vars["addr"])

		addr, err := strconv.ParseUint(vars["addr"], 0, 32)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		reg, err := s.ctrl.RegRead(vars["card"], uint32(addr))
		if err != nil {
			httpError(w, err)
			return
		}

		writeJSON(w, regsHex([]*layers.Reg{reg})[0])
	}
}

func (s *ApiServer) handleRegReadAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		log.Debug("Handling reg read all request: card: %s", vars["card"])

		var regs []*layers.Reg
		var err error
		if cached, _ := strconv.ParseBool(r.URL.Query().Get("cached")); cached {
			regs, err = s.ctrl.RegReadCached(vars["card"])
		} else {
			regs, err = s.ctrl.RegReadAll(vars["card"])
		}
		if err != nil {
			httpError(w, err)
			return
		}

		writeJSON(w, regsHex(regs))
	}
}

func (s *ApiServer) handleRegWrite() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)

		regHex := &RegHex{}
		err := json.NewDecoder(r.Body).Decode(regHex)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		log.Debug("Handling reg write request: card: %s addr: %s value: %s",
			vars["card"], regHex.Addr, regHex.Value)

		reg, err := layers.NewRegFromHex(regHex.Addr, regHex.Value)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err = s.ctrl.RegWrite(vars["card"], reg); err != nil {
			httpError(w, err)
			return
		}
	}
}

func (s *ApiServer) handleEncoders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		statuses, err := s.ctrl.Encoders(vars["card"])
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, statuses)
	}
}

func (s *ApiServer) handleEncoder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		index, err := encoderIndex(vars)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status, err := s.ctrl.Encoder(vars["card"], index)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, status)
	}
}

func (s *ApiServer) handleIndexEnable() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		setup := &IndexEnableSetup{}
		if err := json.NewDecoder(r.Body).Decode(setup); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		index, err := encoderIndex(vars)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Debug("Handling index enable request: card: %s encoder: %d enable: %t", vars["card"], index, setup.Enable)
		if err = s.ctrl.SetIndexEnable(vars["card"], index, setup.Enable); err != nil {
			httpError(w, err)
			return
		}
	}
}

func (s *ApiServer) handleAck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		index, err := encoderIndex(vars)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Debug("Handling index pulse ack request: card: %s encoder: %d", vars["card"], index)
		if err = s.ctrl.AckIndexPulse(vars["card"], index); err != nil {
			httpError(w, err)
			return
		}
	}
}

func (s *ApiServer) handleReset() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		setup := &ResetSetup{}
		if err := json.NewDecoder(r.Body).Decode(setup); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Debug("Handling reset request: card: %s reset: %t", vars["card"], setup.Reset)
		if err := s.ctrl.SetReset(vars["card"], setup.Reset); err != nil {
			httpError(w, err)
			return
		}
	}
}

func (s *ApiServer) handleRegMap() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		m, err := s.ctrl.RegMap(vars["card"])
		if err != nil {
			httpError(w, err)
			return
		}
		switch format := r.URL.Query().Get("format"); format {
		case "csv":
			w.Header().Set("Content-Type", "text/csv")
			err = m.WriteCSV(w)
		case "", "json":
			w.Header().Set("Content-Type", "application/json")
			err = m.WriteJSON(w)
		default:
			err = srv.ErrUnknownOperation{What: fmt.Sprintf("register map format %q. Must be one of json/csv", format)}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			log.Error("Error while writing register map of card %s: %s", vars["card"], err)
		}
	}
}
