package anchor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"log"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
)

// recordDigestABI is the minimal ABI fragment for the single function
// this target calls: recordDigest(bytes32).
const recordDigestABI = `[{"inputs":[{"internalType":"bytes32","name":"digest","type":"bytes32"}],"name":"recordDigest","outputs":[],"stateMutability":"nonpayable","type":"function"}]`

// EVMConfig configures the EVM anchor target.
type EVMConfig struct {
	RPCURL              string
	ChainIDNum          int64
	ContractAddress     string
	PrivateKeyHex       string
	GasLimit            uint64
	ConfirmationBlocks  uint64
	CallTimeout         time.Duration
}

// EVM anchors commitments by calling recordDigest(bytes32) on a
// contract, then polls eth_getTransactionReceipt/eth_blockNumber to
// derive confirmation depth.
type EVM struct {
	client        *ethclient.Client
	chainID       *big.Int
	contractAddr  common.Address
	privateKey    *ecdsa.PrivateKey
	abi           abi.ABI
	gasLimit      uint64
	confirmations uint64
	callTimeout   time.Duration
	logger        *log.Logger
}

func NewEVM(cfg EVMConfig, logger *log.Logger) (*EVM, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindServiceUnavailable, "connect to EVM RPC endpoint", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindValidation, "parse anchor signing key", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(recordDigestABI))
	if err != nil {
		return nil, apierrors.Wrap(apierrors.KindInternal, "parse recordDigest ABI", err)
	}

	confirmations := cfg.ConfirmationBlocks
	if confirmations == 0 {
		confirmations = 6
	}
	callTimeout := cfg.CallTimeout
	if callTimeout == 0 {
		callTimeout = 30 * time.Second
	}

	return &EVM{
		client:        client,
		chainID:       big.NewInt(cfg.ChainIDNum),
		contractAddr:  common.HexToAddress(cfg.ContractAddress),
		privateKey:    privateKey,
		abi:           parsedABI,
		gasLimit:      cfg.GasLimit,
		confirmations: confirmations,
		callTimeout:   callTimeout,
		logger:        logger,
	}, nil
}

func (e *EVM) sealed() {}

func (e *EVM) ChainID() string { return e.chainID.String() }

func (e *EVM) Anchor(ctx context.Context, commitment [32]byte) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	auth, err := bind.NewKeyedTransactorWithChainID(e.privateKey, e.chainID)
	if err != nil {
		return Receipt{}, apierrors.Wrap(apierrors.KindInternal, "build transactor", err)
	}

	fromAddr := crypto.PubkeyToAddress(e.privateKey.PublicKey)
	nonce, err := e.client.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return Receipt{}, apierrors.Wrap(apierrors.KindUpstream, "fetch nonce", err)
	}
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return Receipt{}, apierrors.Wrap(apierrors.KindUpstream, "fetch gas price", err)
	}

	data, err := e.abi.Pack("recordDigest", commitment)
	if err != nil {
		return Receipt{}, apierrors.Wrap(apierrors.KindInternal, "pack recordDigest call", err)
	}

	gasLimit := e.gasLimit
	if gasLimit == 0 {
		gasLimit = 100_000
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &e.contractAddr,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := auth.Signer(fromAddr, tx)
	if err != nil {
		return Receipt{}, apierrors.Wrap(apierrors.KindInternal, "sign anchor transaction", err)
	}
	if err := e.client.SendTransaction(ctx, signedTx); err != nil {
		return Receipt{}, apierrors.Wrap(apierrors.KindUpstream, "send anchor transaction", err)
	}

	txID := signedTx.Hash().Hex()
	if e.logger != nil {
		e.logger.Printf("anchor: submitted recordDigest tx %s on chain %s", txID, e.chainID)
	}
	return Receipt{TxID: txID, Status: StatusPending, AnchoredAt: time.Now().UTC()}, nil
}

func (e *EVM) CheckStatus(ctx context.Context, txID string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	hash := common.HexToHash(txID)
	receipt, err := e.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return StatusPending, nil
	}
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindUpstream, "fetch transaction receipt", err)
	}
	if receipt.Status == gethtypes.ReceiptStatusFailed {
		return StatusFailed, nil
	}

	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		return "", apierrors.Wrap(apierrors.KindUpstream, "fetch chain head", err)
	}

	if head < receipt.BlockNumber.Uint64() {
		return StatusConfirmed, nil
	}
	depth := head - receipt.BlockNumber.Uint64()
	if depth >= e.confirmations {
		return StatusFinalized, nil
	}
	return StatusConfirmed, nil
}
