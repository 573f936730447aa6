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

package command

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/log"
	"jinr.ru/greenlab/go-encoder/pkg/srv/card"
	"jinr.ru/greenlab/go-encoder/pkg/srv/control"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func ignoreCanceled(err error) error {
	if err == context.Canceled {
		log.Info("Interrupted, shutting down")
		return nil
	}
	return err
}

// StartControlServer ...
func StartControlServer(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := control.NewControlServer(ctx, cfg)
	if err != nil {
		return err
	}
	return ignoreCanceled(s.Run())
}

// StartCard runs the emulated encoder card described by the card section of the config
func StartCard(cfg *config.Config) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := card.NewCard(ctx, cfg)
	if err != nil {
		return err
	}
	return ignoreCanceled(c.Run())
}
