package main

import (
	"log"
	"os"
	"strings"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/vinotrust/winetrace/chaincode/winetrace-core/access"
	"github.com/vinotrust/winetrace/chaincode/winetrace-core/contracts"
)

func main() {
	cfg := loadAccessConfig()

	cc, err := contractapi.NewChaincode(
		contracts.NewGrowerContract(cfg),
		contracts.NewWineryContract(cfg),
		contracts.NewCarrierContract(cfg),
		contracts.NewDistributorContract(cfg),
		contracts.NewRetailerContract(cfg),
		contracts.NewRegulatorContract(cfg),
		contracts.NewConsumerContract(cfg),
	)
	if err != nil {
		log.Panicf("Error creating winetrace chaincode: %v", err)
	}

	if err := cc.Start(); err != nil {
		log.Panicf("Error starting winetrace chaincode: %v", err)
	}
}

// loadAccessConfig starts from the reference network naming and lets each
// deployment override per-role MSP IDs and CA namespaces through env vars,
// e.g. WINETRACE_GROWER_MSP and WINETRACE_GROWER_NAMESPACE.
func loadAccessConfig() access.Config {
	cfg := access.DefaultConfig()
	for role, org := range cfg.Orgs {
		prefix := "WINETRACE_" + strings.ToUpper(string(role))
		if v := os.Getenv(prefix + "_MSP"); v != "" {
			org.MSPID = v
		}
		if v := os.Getenv(prefix + "_NAMESPACE"); v != "" {
			org.Namespace = v
		}
		cfg.Orgs[role] = org
	}
	return cfg
}
