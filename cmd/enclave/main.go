// Command enclave runs the trusted side of one ceremony (spec.md §4.1). It
// listens for a single host connection over vsock, drives the
// EnclaveCeremony state machine to completion, and exits.
package main

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/sealedkey/groth16tee/attestation"
	"github.com/sealedkey/groth16tee/ceremony"
	"github.com/sealedkey/groth16tee/compiler"
	"github.com/sealedkey/groth16tee/config"
	"github.com/sealedkey/groth16tee/ptau"
	"github.com/sealedkey/groth16tee/rng"
	"github.com/sealedkey/groth16tee/solidity"
	"github.com/sealedkey/groth16tee/toolchain"
	"github.com/sealedkey/groth16tee/transport"
)

func main() {
	if len(os.Args) < 7 {
		printUsage()
		os.Exit(1)
	}

	port, err := strconv.ParseUint(os.Args[1], 10, 32)
	if err != nil {
		log.Fatalf("enclave: invalid vsock port %q: %v", os.Args[1], err)
	}
	workDir := os.Args[2]
	circomBinary := os.Args[3]
	toolchainBinary := os.Args[4]
	issuerBinary := os.Args[5]
	solcBinary := os.Args[6]

	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()

	root, err := loadRootCertificate(config.TEERootCertificatePEM)
	if err != nil {
		log.Fatalf("enclave: load pinned root certificate: %v", err)
	}

	listener, err := transport.ListenVsock(uint32(port))
	if err != nil {
		log.Fatalf("enclave: listen vsock port %d: %v", port, err)
	}
	defer listener.Close()

	logger.Info().Uint64("port", port).Msg("enclave listening")
	conn, err := listener.Accept()
	if err != nil {
		log.Fatalf("enclave: accept: %v", err)
	}
	defer conn.Close()

	e := &ceremony.EnclaveCeremony{
		Conn:       conn,
		RNGSource:  rng.NewSysfsSource(),
		Circom:     compiler.NewExecCircom(circomBinary),
		Catalog:    ptau.DefaultCatalog(),
		Toolchain:  toolchain.NewExecToolchain(toolchainBinary),
		Issuer:     attestation.NewExecIssuer(issuerBinary),
		Verifier:   attestation.NewVerifier(root),
		Chain:      config.PinnedChain,
		SolidityVM: solidity.NewCompiler(solcBinary),
		WorkDir:    workDir,
		Logger:     logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := e.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("ceremony failed")
		os.Exit(1)
	}
	logger.Info().Msg("ceremony complete")
}

func loadRootCertificate(pemText string) (*x509.Certificate, error) {
	if pemText == "" {
		return nil, fmt.Errorf("config.TEERootCertificatePEM is empty; this deployment must compile in the vendor root")
	}
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

func printUsage() {
	fmt.Println(`Usage:
  go run ./cmd/enclave PORT WORKDIR CIRCOM_BIN TOOLCHAIN_BIN ISSUER_BIN SOLC_BIN

  PORT            vsock port to listen on for the host connection
  WORKDIR         scratch directory for intermediate circuit/key files
  CIRCOM_BIN      path to the circom compiler binary
  TOOLCHAIN_BIN   path to the Groth16 toolchain binary (new_zkey/contribute/apply_beacon/...)
  ISSUER_BIN      path to the attestation issuer binary
  SOLC_BIN        path to the solc binary`)
}
