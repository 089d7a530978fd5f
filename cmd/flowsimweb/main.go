/*
Copyright © 2018 the Flowsim authors.
This file is part of Flowsim.

Flowsim is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Flowsim is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Flowsim.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command flowsimweb is a web interface for the flowsim process
// flowsheet simulator.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/processmodel/flowsim"
	"github.com/spf13/pflag"
)

var logger *logrus.Logger

func init() {
	logger = logrus.StandardLogger()
	logrus.SetLevel(logrus.DebugLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
}

// serverConfig holds the server settings read from the configuration
// file. The zero value of every field selects a usable default.
type serverConfig struct {
	// Address is the address the server listens on.
	Address string `toml:"address"`

	// MaxSweeps, TearTolerance, and TearAcceleration configure the
	// recycle tear-stream iteration; see the flowsim package
	// documentation.
	MaxSweeps        int     `toml:"max_sweeps"`
	TearTolerance    float64 `toml:"tear_tolerance"`
	TearAcceleration string  `toml:"tear_acceleration"`

	// Economics holds the utility price and emission-factor table.
	Economics *flowsim.Economics `toml:"economics"`
}

var config = pflag.String("config", "", "Path to the configuration file")

func main() {
	pflag.Parse()

	c := serverConfig{Address: "localhost:8080"}
	if *config != "" {
		f, err := os.Open(os.ExpandEnv(*config))
		if err != nil {
			logger.WithError(err).Fatal("failed to open configuration file")
		}
		if _, err := toml.DecodeReader(f, &c); err != nil {
			f.Close()
			logger.WithError(err).Fatal("failed to parse configuration file")
		}
		f.Close()
	}

	opts := flowsim.DefaultRunOptions()
	if c.MaxSweeps > 0 {
		opts.MaxSweeps = c.MaxSweeps
	}
	if c.TearTolerance > 0 {
		opts.TearTolerance = c.TearTolerance
	}
	if c.TearAcceleration == "wegstein" {
		opts.Acceleration = flowsim.Wegstein
	}
	if c.Economics != nil {
		opts.Economics = *c.Economics
	}

	logger.Info("setting up...")
	srv := &http.Server{
		Addr:              c.Address,
		Handler:           flowsim.Handler(nil, opts),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	logger.Infof("listening on http://%s\n", c.Address)
	logger.Fatal(srv.ListenAndServe())
}
