package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Caskiuz/nemymarket.git/internal/audit"
	"github.com/Caskiuz/nemymarket.git/internal/cashsettle"
	"github.com/Caskiuz/nemymarket.git/internal/events"
	"github.com/Caskiuz/nemymarket.git/internal/heldfunds"
	"github.com/Caskiuz/nemymarket.git/internal/httpserver"
	"github.com/Caskiuz/nemymarket.git/internal/logger"
	"github.com/Caskiuz/nemymarket.git/internal/models"
	"github.com/Caskiuz/nemymarket.git/internal/orders"
	"github.com/Caskiuz/nemymarket.git/internal/rates"
	"github.com/Caskiuz/nemymarket.git/internal/scheduler"
	"github.com/Caskiuz/nemymarket.git/internal/settlement"
	"github.com/Caskiuz/nemymarket.git/internal/storage/postrge"
	"github.com/Caskiuz/nemymarket.git/internal/transferservice"
	"github.com/Caskiuz/nemymarket.git/internal/wallets"
	"github.com/Caskiuz/nemymarket.git/internal/withdrawals"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()
	err := parseFlags()
	if err != nil {
		log.Fatal(err)
	}
	if err := logger.Initialize(CliOptions.LogLevel); err != nil {
		panic(fmt.Errorf("method main: %v", err))
	}
	logger.Log.Info("Flags parsed",
		zap.String("flags", CliOptions.String()))

	logger.Log.Info("Starting service")
	if err = run(); err != nil {
		logger.Log.Fatal("", zap.Error(err))
	}
}

type repositories struct {
	wConn  wallets.DatabaseWallets
	hfConn heldfunds.DatabaseHeldFunds
	oConn  orders.DatabaseOrders
	wdConn withdrawals.DatabaseWithdrawals
	aConn  audit.DatabaseAudit
}

func newRepositories(ctx context.Context) (repositories, error) {
	if CliOptions.DatabaseDSN == "" {
		logger.Log.Warn("no database DSN given, running on in-memory stores")
		hf := heldfunds.NewMemHeldFunds()
		return repositories{
			wConn:  wallets.NewMemWallets(),
			hfConn: hf,
			oConn:  orders.NewMemOrders(hf),
			wdConn: withdrawals.NewMemWithdrawals(),
			aConn:  audit.NewMemAudit(),
		}, nil
	}

	conn, err := postrge.NewConnection(ctx, CliOptions.DatabaseDSN)
	if err != nil {
		return repositories{}, err
	}
	wConn, err := wallets.NewDBWallets(conn.DB(), conn.Mutex())
	if err != nil {
		return repositories{}, err
	}
	hfConn, err := heldfunds.NewDBHeldFunds(conn.DB(), conn.Mutex())
	if err != nil {
		return repositories{}, err
	}
	oConn, err := orders.NewDBOrders(conn.DB(), conn.Mutex())
	if err != nil {
		return repositories{}, err
	}
	wdConn, err := withdrawals.NewDBWithdrawals(conn.DB(), conn.Mutex())
	if err != nil {
		return repositories{}, err
	}
	aConn, err := audit.NewDBAudit(conn.DB(), conn.Mutex())
	if err != nil {
		return repositories{}, err
	}
	return repositories{wConn: wConn, hfConn: hfConn, oConn: oConn, wdConn: wdConn, aConn: aConn}, nil
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, err := newRepositories(ctx)
	if err != nil {
		return err
	}

	var rateProvider rates.Provider
	if CliOptions.RedisAddress != "" {
		rateProvider = rates.NewRedisProvider(CliOptions.RedisAddress, models.DefaultCommissionRates)
	} else {
		rateProvider = rates.NewStatic(models.DefaultCommissionRates)
	}

	heldSrv := heldfunds.NewHFService(repos.hfConn, repos.wConn)
	cashSrv := cashsettle.NewCSService(repos.wConn, repos.oConn, rateProvider)
	settleSrv := settlement.NewService(repos.oConn, heldSrv, cashSrv, rateProvider, CliOptions.HoldDuration)
	bank := transferservice.NewBankAPIService(CliOptions.TransferAddress.String())
	wdSrv := withdrawals.NewWDService(repos.wdConn, repos.wConn, bank)
	walletSrv := wallets.NewWService(repos.wConn)

	h := httpserver.NewHandlers(walletSrv, wdSrv, cashSrv, settleSrv, heldSrv, repos.aConn,
		CliOptions.ProcessorToken, CliOptions.AdminToken)
	service, err := httpserver.NewService(CliOptions.APIAddress.String(), h)
	if err != nil {
		return err
	}

	sch := scheduler.NewScheduler(heldSrv, wdSrv, settleSrv, repos.aConn, CliOptions.JobInterval)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return service.Run()
	})

	g.Go(func() error {
		return sch.Run(ctx)
	})

	if CliOptions.KafkaBrokers != "" {
		consumer := events.NewConsumer(strings.Split(CliOptions.KafkaBrokers, ","), CliOptions.KafkaTopic, settleSrv)
		g.Go(func() error {
			return consumer.Run(ctx)
		})
	} else {
		logger.Log.Warn("no kafka brokers given, delivered-order consumer disabled")
	}

	if err := g.Wait(); err != nil {
		logger.Log.Debug("exit with error", zap.Error(err))
		cancel()
		return err
	}
	return nil
}
