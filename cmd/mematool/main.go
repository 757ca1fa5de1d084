// Copyright 2024 The Mema Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command mematool is the dynamic-tool CLI surface. A full
// binary-translation framework with real superblock scheduling is out
// of scope here; this binary stands in its place with a canned
// superblock script read from a file, so the dynamic instrumentation
// policy in instrument/dynamic can be exercised end to end from the
// command line.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pwaller/mema/config"
	"github.com/pwaller/mema/instrument/dynamic"
	mema "github.com/pwaller/mema/runtime"
)

// yesNo is a flag.Value accepting "yes"/"no", matching the original's
// --flag=yes|no surface rather than Go's conventional bare -flag bool.
type yesNo struct{ v bool }

func (y *yesNo) String() string { return map[bool]string{true: "yes", false: "no"}[y.v] }
func (y *yesNo) Set(s string) error {
	switch s {
	case "yes":
		y.v = true
	case "no":
		y.v = false
	default:
		return fmt.Errorf("expected yes or no, got %q", s)
	}
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mematool", flag.ContinueOnError)

	outputfile := fs.String("outputfile", "output.mema", "trace output path")
	fnname := fs.String("fnname", "main", "function name for call counting")
	var basicCounts, detailedCounts, traceMem, traceSuperblocks yesNo
	fs.Var(&basicCounts, "basic-counts", "yes|no")
	fs.Var(&detailedCounts, "detailed-counts", "yes|no")
	traceMem.v = true
	fs.Var(&traceMem, "trace-mem", "yes|no")
	fs.Var(&traceSuperblocks, "trace-superblocks", "yes|no")
	script := fs.String("script", "", "path to a canned superblock script (testing/demo use)")

	if err := fs.Parse(args); err != nil {
		// Unknown flags cause the tool to decline the argument;
		// flag.ContinueOnError already printed usage.
		return 2
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	cfg := defaultToolConfig(*outputfile, traceMem.v)
	if err := mema.Initialize(cfg); err != nil {
		logger.Error("initialize failed", "err", err)
		return 1
	}
	defer mema.Finalize()

	logger.Info("mematool started",
		"outputfile", *outputfile,
		"fnname", *fnname,
		"basic-counts", basicCounts.v,
		"detailed-counts", detailedCounts.v,
		"trace-mem", traceMem.v,
		"trace-superblocks", traceSuperblocks.v,
	)

	if *script != "" {
		if err := runScript(*script); err != nil {
			logger.Error("script run failed", "err", err)
			return 1
		}
	}
	return 0
}

// defaultToolConfig builds the Config this CLI needs without routing
// through config.Parse's env-string format, since the tool's flags are
// already typed.
func defaultToolConfig(outputfile string, compression bool) config.Config {
	cfg := config.Default()
	cfg.Filename = outputfile
	cfg.Compression = compression
	return cfg
}

// runScript replays a canned superblock script: one instruction per
// line, `kind addr size`, where kind is one of imark/load/store/cas/
// loadlinked/storecond. This is the stand-in for a real
// binary-translation framework.
func runScript(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	const tid = mema.ThreadID(0)
	q := dynamic.NewQueue(func(events []dynamic.Event) {
		for _, e := range events {
			rec := e.ToRecord(0)
			mema.AccessRecord(tid, rec.Kind, rec.Addr, rec.Size)
		}
	})

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		addr, size := parseOperands(fields)
		switch fields[0] {
		case "imark":
			q.IMark(addr, uint8(size))
		case "load":
			q.Load(addr, uint8(size))
		case "store":
			q.Store(addr, uint8(size))
		case "cas":
			q.CompareAndSwap(addr, uint8(size), len(fields) > 3 && fields[3] == "dual")
		case "loadlinked":
			q.LoadLinked(addr, uint8(size))
		case "storecond":
			q.StoreConditional(addr, uint8(size))
		}
		// The whole script is treated as one superblock: lines are not
		// flushed individually, so a load on one line can merge with a
		// store on the next.
	}
	q.Flush()
	return sc.Err()
}

func parseOperands(fields []string) (addr uintptr, size uint64) {
	if len(fields) > 1 {
		if n, err := strconv.ParseUint(strings.TrimPrefix(fields[1], "0x"), 16, 64); err == nil {
			addr = uintptr(n)
		}
	}
	if len(fields) > 2 {
		if n, err := strconv.ParseUint(fields[2], 10, 8); err == nil {
			size = n
		}
	}
	return addr, size
}
