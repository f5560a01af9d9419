// Command host runs the untrusted side of one ceremony (spec.md §4.2). It
// compiles the circuit, selects PTAU, spawns the enclave binary, drives the
// HostCeremony state machine, and writes the nine shipped artifacts to disk.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealedkey/groth16tee/beacon"
	"github.com/sealedkey/groth16tee/ceremony"
	"github.com/sealedkey/groth16tee/compiler"
	"github.com/sealedkey/groth16tee/config"
	"github.com/sealedkey/groth16tee/ptau"
	"github.com/sealedkey/groth16tee/toolchain"
	"github.com/sealedkey/groth16tee/transport"
)

func main() {
	if len(os.Args) < 9 {
		printUsage()
		os.Exit(1)
	}

	circuitPath := os.Args[1]
	workDir := os.Args[2]
	circomBinary := os.Args[3]
	toolchainBinary := os.Args[4]
	enclaveBinary := os.Args[5]
	enclaveCID, err := strconv.ParseUint(os.Args[6], 10, 32)
	if err != nil {
		log.Fatalf("host: invalid enclave cid %q: %v", os.Args[6], err)
	}
	enclavePort, err := strconv.ParseUint(os.Args[7], 10, 32)
	if err != nil {
		log.Fatalf("host: invalid enclave port %q: %v", os.Args[7], err)
	}
	drandBaseURL := os.Args[8]

	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	circuitSource, err := os.ReadFile(circuitPath)
	if err != nil {
		log.Fatalf("host: read circuit source: %v", err)
	}

	h := &ceremony.HostCeremony{
		Circom:        compiler.NewExecCircom(circomBinary),
		Catalog:       ptau.DefaultCatalog(),
		Toolchain:     toolchain.NewExecToolchain(toolchainBinary),
		BeaconClient:  beacon.NewClient(drandBaseURL, config.PinnedChain.Hash),
		Chain:         config.PinnedChain,
		WorkDir:       workDir,
		EnclaveBinary: enclaveBinary,
		EnclaveArgs:   []string{os.Args[7], workDir, circomBinary, toolchainBinary, "issuer", "solc"},
		Logger:        logger,
		DialEnclave: func(ctx context.Context) (net.Conn, error) {
			return dialWithRetry(ctx, uint32(enclaveCID), uint32(enclavePort))
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	artifacts, err := h.Run(ctx, circuitSource)
	if err != nil {
		logger.Error().Err(err).Msg("ceremony failed")
		os.Exit(1)
	}

	for name, body := range artifacts {
		if err := os.WriteFile(filepath.Join(workDir, name), body, 0o644); err != nil {
			log.Fatalf("host: write artifact %q: %v", name, err)
		}
	}
	logger.Info().Int("count", len(artifacts)).Msg("ceremony complete")
}

// dialWithRetry retries the initial vsock dial: the enclave process needs a
// moment after exec.Start to bring its listener up.
func dialWithRetry(ctx context.Context, cid, port uint32) (net.Conn, error) {
	deadline := time.Now().Add(10 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := transport.DialVsock(cid, port)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("host: dial enclave vsock cid=%d port=%d: %w", cid, port, lastErr)
}

func printUsage() {
	fmt.Println(`Usage:
  go run ./cmd/host CIRCUIT WORKDIR CIRCOM_BIN TOOLCHAIN_BIN ENCLAVE_BIN ENCLAVE_CID ENCLAVE_PORT DRAND_BASE_URL

  CIRCUIT          path to the .circom circuit source
  WORKDIR          scratch directory for intermediate and final artifacts
  CIRCOM_BIN       path to the circom compiler binary
  TOOLCHAIN_BIN    path to the Groth16 toolchain binary
  ENCLAVE_BIN      path to the enclave binary to exec
  ENCLAVE_CID      vsock context ID of the enclave
  ENCLAVE_PORT     vsock port the enclave listens on
  DRAND_BASE_URL   base URL of the drand HTTP API`)
}
