/*
 * Latte - Main process.
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package main

import (
	"io"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	command "github.com/rcornwell/latte/command"
	config "github.com/rcornwell/latte/config"
	machine "github.com/rcornwell/latte/emu/machine"
	logger "github.com/rcornwell/latte/util/logger"
)

func main() {
	optConfig := getopt.StringLong("config", 'c', "latte.cfg", "Configuration file")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optDebug := getopt.BoolLong("debug", 'd', "Log everything to stderr")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	var file io.Writer
	if *optLogFile != "" {
		if f, err := os.Create(*optLogFile); err == nil {
			file = f
		}
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelDebug)
	handler := logger.NewHandler(file, &slog.HandlerOptions{Level: programLevel}, *optDebug)
	log := slog.New(handler)
	slog.SetDefault(log)

	log.Info("Latte started")

	cfg, err := config.Load(*optConfig)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
	if cfg.Debug {
		handler.SetDebug(true)
	}

	m, err := machine.New(cfg)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	if err := m.LoadImages(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}

	// The scheduler gets its own goroutine; the console owns the
	// terminal.
	done := make(chan bool, 1)
	go func() {
		m.Start()
		done <- m.Sched.Run()
	}()

	command.ConsoleReader(m)

	if ok := <-done; !ok {
		log.Error("Machine stopped on an unrecovered fault")
		os.Exit(1)
	}
	log.Info("Machine stopped")
}
