package lending

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const poolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "reserve", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "onBehalfOf", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "enum DataTypes.InterestRateMode", "name": "interestRateMode", "type": "uint8"},
      {"indexed": false, "internalType": "uint256", "name": "borrowRate", "type": "uint256"},
      {"indexed": true, "internalType": "uint16", "name": "referralCode", "type": "uint16"}
    ],
    "name": "Borrow",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "reserve", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "repayer", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "bool", "name": "useATokens", "type": "bool"}
    ],
    "name": "Repay",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "collateralAsset", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "debtAsset", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "debtToCover", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "liquidatedCollateralAmount", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "liquidator", "type": "address"},
      {"indexed": false, "internalType": "bool", "name": "receiveAToken", "type": "bool"}
    ],
    "name": "LiquidationCall",
    "type": "event"
  },
  {
    "inputs": [{"internalType": "address", "name": "user", "type": "address"}],
    "name": "getUserAccountData",
    "outputs": [
      {"internalType": "uint256", "name": "totalCollateralBase", "type": "uint256"},
      {"internalType": "uint256", "name": "totalDebtBase", "type": "uint256"},
      {"internalType": "uint256", "name": "availableBorrowsBase", "type": "uint256"},
      {"internalType": "uint256", "name": "currentLiquidationThreshold", "type": "uint256"},
      {"internalType": "uint256", "name": "ltv", "type": "uint256"},
      {"internalType": "uint256", "name": "healthFactor", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const oracleABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "asset", "type": "address"}], "name": "getAssetPrice", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"}
]`

const dataProviderABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "asset", "type": "address"},
      {"internalType": "address", "name": "user", "type": "address"}
    ],
    "name": "getUserReserveData",
    "outputs": [
      {"internalType": "uint256", "name": "currentATokenBalance", "type": "uint256"},
      {"internalType": "uint256", "name": "currentStableDebt", "type": "uint256"},
      {"internalType": "uint256", "name": "currentVariableDebt", "type": "uint256"},
      {"internalType": "uint256", "name": "principalStableDebt", "type": "uint256"},
      {"internalType": "uint256", "name": "scaledVariableDebt", "type": "uint256"},
      {"internalType": "uint256", "name": "stableBorrowRate", "type": "uint256"},
      {"internalType": "uint256", "name": "liquidityRate", "type": "uint256"},
      {"internalType": "uint40", "name": "stableRateLastUpdated", "type": "uint40"},
      {"internalType": "bool", "name": "usageAsCollateralEnabled", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const settlementABIJSON = `[
  {
    "inputs": [
      {"internalType": "address", "name": "collateralAsset", "type": "address"},
      {"internalType": "address", "name": "debtAsset", "type": "address"},
      {"internalType": "address", "name": "user", "type": "address"},
      {"internalType": "uint256", "name": "debtToCover", "type": "uint256"}
    ],
    "name": "executeLiquidation",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"internalType": "address[]", "name": "collateralAssets", "type": "address[]"},
      {"internalType": "address[]", "name": "debtAssets", "type": "address[]"},
      {"internalType": "address[]", "name": "users", "type": "address[]"},
      {"internalType": "uint256[]", "name": "debtsToCover", "type": "uint256[]"}
    ],
    "name": "executeBatch",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	poolABI         = &lazyABI{json: poolABIJSON}
	oracleABI       = &lazyABI{json: oracleABIJSON}
	erc20ABI        = &lazyABI{json: erc20ABIJSON}
	dataProviderABI = &lazyABI{json: dataProviderABIJSON}
	settlementABI   = &lazyABI{json: settlementABIJSON}
)

// PoolABI returns the parsed lending pool ABI (events and getUserAccountData).
func PoolABI() (abi.ABI, error) { return poolABI.get() }

// OracleABI returns the parsed price oracle ABI.
func OracleABI() (abi.ABI, error) { return oracleABI.get() }

// ERC20ABI returns balanceOf/decimals.
func ERC20ABI() (abi.ABI, error) { return erc20ABI.get() }

// DataProviderABI returns the protocol data provider ABI.
func DataProviderABI() (abi.ABI, error) { return dataProviderABI.get() }

// SettlementABI returns the liquidation settlement contract ABI.
func SettlementABI() (abi.ABI, error) { return settlementABI.get() }
