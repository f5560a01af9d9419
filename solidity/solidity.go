// Package solidity wraps the Solidity compiler as an opaque external tool
// and derives the two values external verifiers need from its output:
// creation bytecode and the keccak-256 of runtime bytecode (spec.md §4.1
// state EXPORT_VERIFIER).
package solidity

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os/exec"

	"golang.org/x/crypto/sha3"
)

// Artifact is the compiled verifier contract's two committed values.
type Artifact struct {
	CreationBytecodeHex string
	RuntimeKeccak256Hex string
}

// Compiler wraps solc with deterministic settings: metadata hashing
// disabled so the same source always produces the same bytecode.
type Compiler struct {
	BinaryPath string
}

// NewCompiler returns a Compiler backed by the binary at path.
func NewCompiler(path string) *Compiler {
	return &Compiler{BinaryPath: path}
}

// standardJSONInput mirrors solc's --standard-json request shape with
// metadata hashing turned off (metadata.bytecodeHash = "none").
type standardJSONInput struct {
	Language string                   `json:"language"`
	Sources  map[string]sourceContent `json:"sources"`
	Settings settingsBlock            `json:"settings"`
}

type sourceContent struct {
	Content string `json:"content"`
}

type settingsBlock struct {
	OutputSelection map[string]map[string][]string `json:"outputSelection"`
	Metadata        metadataSettings                `json:"metadata"`
}

type metadataSettings struct {
	BytecodeHash string `json:"bytecodeHash"`
}

type standardJSONOutput struct {
	Errors []struct {
		Severity string `json:"severity"`
		Message  string `json:"formattedMessage"`
	} `json:"errors"`
	Contracts map[string]map[string]struct {
		EVM struct {
			Bytecode struct {
				Object string `json:"object"`
			} `json:"bytecode"`
			DeployedBytecode struct {
				Object string `json:"object"`
			} `json:"deployedBytecode"`
		} `json:"evm"`
	} `json:"contracts"`
}

// Compile runs solc on the source text, under the fixed file name
// "verifier.sol", and returns the creation bytecode plus the keccak-256 of
// the runtime (deployed) bytecode of contractName.
func (c *Compiler) Compile(ctx context.Context, source, contractName string) (Artifact, error) {
	req := standardJSONInput{
		Language: "Solidity",
		Sources: map[string]sourceContent{
			"verifier.sol": {Content: source},
		},
		Settings: settingsBlock{
			OutputSelection: map[string]map[string][]string{
				"*": {"*": {"evm.bytecode.object", "evm.deployedBytecode.object"}},
			},
			Metadata: metadataSettings{BytecodeHash: "none"},
		},
	}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		return Artifact{}, fmt.Errorf("solidity: encode standard-json request: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.BinaryPath, "--standard-json")
	cmd.Stdin = bytes.NewReader(reqBytes)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Artifact{}, fmt.Errorf("solidity: solc failed: %w (stderr: %s)", err, stderr.String())
	}

	var out standardJSONOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return Artifact{}, fmt.Errorf("solidity: decode solc output: %w", err)
	}
	for _, e := range out.Errors {
		if e.Severity == "error" {
			return Artifact{}, fmt.Errorf("solidity: compile error: %s", e.Message)
		}
	}

	contract, ok := out.Contracts["verifier.sol"][contractName]
	if !ok {
		return Artifact{}, fmt.Errorf("solidity: contract %q not found in solc output", contractName)
	}

	runtime, err := hex.DecodeString(contract.EVM.DeployedBytecode.Object)
	if err != nil {
		return Artifact{}, fmt.Errorf("solidity: decode runtime bytecode: %w", err)
	}

	return Artifact{
		CreationBytecodeHex: contract.EVM.Bytecode.Object,
		RuntimeKeccak256Hex: Keccak256Hex(runtime),
	}, nil
}

// Keccak256Hex returns the hex-encoded Keccak-256 digest of data, the hash
// function external verifiers expect over EVM bytecode.
func Keccak256Hex(data []byte) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
