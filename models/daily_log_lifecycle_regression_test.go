package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thukatech/restock_backend/config"
	"github.com/thukatech/restock_backend/models"
	"github.com/thukatech/restock_backend/utils"
)

// setupIntegrationEnv boots throwaway MySQL and Redis containers, connects
// the config singletons and migrates a fresh schema. Returns a context
// carrying test user identity.
func setupIntegrationEnv(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "restock_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	return ctx
}

func TestPickupSplitConservesQuantities(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	result, err := models.CreateOrMergeOrder(ctx, &models.NewOrder{
		ImageHash:    strings.Repeat("a1", 32),
		Quantities:   models.QuantityMap{"S": 7, "M": 3},
		HasSizes:     true,
		SupplierName: "Daw Mya",
		Price:        decimal.NewFromInt(4500),
	})
	if err != nil {
		t.Fatalf("CreateOrMergeOrder: %v", err)
	}
	if result.Merged {
		t.Fatal("first capture must not merge")
	}
	log := result.Log

	pickup, err := models.ProcessPickup(ctx, log.ID, &models.PickupInput{
		PickedAmounts: models.QuantityMap{"S": 5, "M": 3},
	})
	if err != nil {
		t.Fatalf("ProcessPickup: %v", err)
	}
	if pickup.Remainder == nil {
		t.Fatal("partial pickup must split a remainder log")
	}

	dispatched := pickup.Log
	remainder := pickup.Remainder

	if dispatched.Status != models.LogStatusDispatched {
		t.Fatalf("dispatched log status = %q", dispatched.Status)
	}
	if dispatched.ID != log.ID {
		t.Fatalf("dispatched portion must keep the original id %d, got %d", log.ID, dispatched.ID)
	}
	if got := dispatched.OrderedQty.Sum(); got != 8 {
		t.Fatalf("dispatched orderedQty sum = %d, want 8", got)
	}
	if got := dispatched.DispatchedQty.Sum(); got != 8 {
		t.Fatalf("dispatchedQty sum = %d, want 8", got)
	}

	if remainder.Status != models.LogStatusOrdered {
		t.Fatalf("remainder status = %q", remainder.Status)
	}
	if got := remainder.OrderedQty.Sum(); got != 2 {
		t.Fatalf("remainder sum = %d, want 2", got)
	}
	if remainder.OrderedQty["S"] != 2 {
		t.Fatalf("remainder = %v, want S:2", remainder.OrderedQty)
	}

	// Nothing is lost across the split.
	if total := dispatched.OrderedQty.Sum() + remainder.OrderedQty.Sum(); total != 10 {
		t.Fatalf("split lost pieces: %d, want 10", total)
	}

	history, err := models.GetLogHistory(ctx, remainder.ID)
	if err != nil {
		t.Fatalf("GetLogHistory: %v", err)
	}
	if len(history) != 1 || history[0].Action != models.LogActionSplitRemaining {
		t.Fatalf("remainder history = %+v", history)
	}

	// Receiving everything picked closes the log even though the original
	// order was larger.
	received, err := models.ProcessReceiving(ctx, dispatched.ID, &models.ReceivingInput{
		ReceivedAmounts: models.QuantityMap{"S": 5, "M": 3},
	})
	if err != nil {
		t.Fatalf("ProcessReceiving: %v", err)
	}
	if received.Status != models.LogStatusReceivedFull {
		t.Fatalf("received status = %q, want received_full", received.Status)
	}

	// A short recount downgrades to partial; the count replaces, not adds.
	recount, err := models.ProcessReceiving(ctx, dispatched.ID, &models.ReceivingInput{
		ReceivedAmounts: models.QuantityMap{"S": 5, "M": 1},
	})
	if err != nil {
		t.Fatalf("recount: %v", err)
	}
	if recount.Status != models.LogStatusReceivedPartial {
		t.Fatalf("recount status = %q, want received_partial", recount.Status)
	}
	if got := recount.ReceivedQty.Sum(); got != 6 {
		t.Fatalf("recount receivedQty sum = %d, want 6", got)
	}
}

func TestZeroPickupLeavesOrderOpen(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	result, err := models.CreateOrMergeOrder(ctx, &models.NewOrder{
		ImageHash:  strings.Repeat("b2", 32),
		Quantities: models.QuantityMap{"Total": 12},
	})
	if err != nil {
		t.Fatalf("CreateOrMergeOrder: %v", err)
	}

	pickup, err := models.ProcessPickup(ctx, result.Log.ID, &models.PickupInput{
		PickedAmounts: models.QuantityMap{},
		Notes:         "shop closed",
	})
	if err != nil {
		t.Fatalf("ProcessPickup: %v", err)
	}
	if pickup.Remainder != nil {
		t.Fatal("zero pickup must not split")
	}
	if pickup.Log.Status != models.LogStatusOrdered {
		t.Fatalf("status = %q, want ordered", pickup.Log.Status)
	}

	history, err := models.GetLogHistory(ctx, result.Log.ID)
	if err != nil {
		t.Fatalf("GetLogHistory: %v", err)
	}
	last := history[len(history)-1]
	if last.Action != models.LogActionVisitedZero {
		t.Fatalf("last action = %q, want visited_zero", last.Action)
	}
	if !strings.Contains(last.Details, "shop closed") {
		t.Fatalf("details = %q", last.Details)
	}
}

/* docker helpers */

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("restock-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("restock-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=restock_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}

func TestOverPickIsRejected(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	captured, err := models.CreateOrMergeOrder(ctx, &models.NewOrder{
		ImageHash:  strings.Repeat("b2", 32),
		Quantities: models.QuantityMap{"S": 5, "M": 3},
		HasSizes:   true,
	})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	logId := captured.Log.ID

	var vErr *utils.ValidationError
	_, err = models.ProcessPickup(ctx, logId, &models.PickupInput{
		PickedAmounts: models.QuantityMap{"S": 6},
	})
	if !errors.As(err, &vErr) {
		t.Fatalf("single-key over-pick: want ValidationError, got %v", err)
	}

	// Picking over on one key must not slip through as a full dispatch
	// just because another key still has remainder.
	_, err = models.ProcessPickup(ctx, logId, &models.PickupInput{
		PickedAmounts: models.QuantityMap{"S": 7, "M": 1},
	})
	if !errors.As(err, &vErr) {
		t.Fatalf("mixed over-pick: want ValidationError, got %v", err)
	}

	unchanged, err := models.GetDailyLog(ctx, logId)
	if err != nil {
		t.Fatalf("GetDailyLog: %v", err)
	}
	if unchanged.Status != models.LogStatusOrdered {
		t.Fatalf("status = %q, want ordered after rejected pickups", unchanged.Status)
	}
	if unchanged.DispatchedQty.Sum() != 0 {
		t.Fatalf("dispatchedQty = %v, want empty", unchanged.DispatchedQty)
	}
	if unchanged.OrderedQty["S"] != 5 || unchanged.OrderedQty["M"] != 3 {
		t.Fatalf("orderedQty = %v, want unchanged", unchanged.OrderedQty)
	}

	// A within-bounds pickup still succeeds afterwards.
	picked, err := models.ProcessPickup(ctx, logId, &models.PickupInput{
		PickedAmounts: models.QuantityMap{"S": 5, "M": 3},
	})
	if err != nil {
		t.Fatalf("full pickup: %v", err)
	}
	if picked.Log.Status != models.LogStatusDispatched {
		t.Fatalf("status = %q, want dispatched", picked.Log.Status)
	}
}
