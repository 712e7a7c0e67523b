package sitesync

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/cascadebuilt/sitebooks_backend/config"
	"github.com/cascadebuilt/sitebooks_backend/models"
	"github.com/shopspring/decimal"
)

func setupIntegrationDB(t *testing.T) context.Context {
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
	t.Setenv("DB_NAME", "sitebooks_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	return context.Background()
}

func TestWithSyncRun_TerminalStateOnPanic(t *testing.T) {
	ctx := setupIntegrationDB(t)
	db := config.GetDB()

	runId, _, err := withSyncRun(ctx, db, models.SyncSourceQuickBooks, func(ctx context.Context) (int, error) {
		panic("adapter blew up")
	})
	if err == nil || !strings.Contains(err.Error(), "adapter blew up") {
		t.Fatalf("expected panic error, got %v", err)
	}

	var run models.SyncRun
	if err := db.Where("id = ?", runId).Take(&run).Error; err != nil {
		t.Fatalf("load run: %v", err)
	}
	if run.Status != models.SyncRunStatusFailed {
		t.Fatalf("run status = %q, want failed", run.Status)
	}
	if run.CompletedAt == nil {
		t.Fatal("failed run must carry a completion time")
	}
}

func TestWithSyncRun_CompletesWithRecordCount(t *testing.T) {
	ctx := setupIntegrationDB(t)
	db := config.GetDB()

	runId, synced, err := withSyncRun(ctx, db, models.SyncSourceProjects, func(ctx context.Context) (int, error) {
		return 12, nil
	})
	if err != nil {
		t.Fatalf("withSyncRun: %v", err)
	}
	if synced != 12 {
		t.Fatalf("synced = %d", synced)
	}

	var run models.SyncRun
	if err := db.Where("id = ?", runId).Take(&run).Error; err != nil {
		t.Fatalf("load run: %v", err)
	}
	if run.Status != models.SyncRunStatusCompleted || run.RecordsSynced != 12 {
		t.Fatalf("run = %+v", run)
	}
}

func TestApplyDocumentPlan_UpsertIsIdempotent(t *testing.T) {
	ctx := setupIntegrationDB(t)
	db := config.GetDB()
	now := time.Now()

	docs := []ExternalDocument{
		{ExternalId: "inv-1", Counterparty: "Acme Corp", Amount: decimal.NewFromInt(500), Balance: decimal.NewFromInt(500)},
	}

	for i := 0; i < 2; i++ {
		plan := BuildDocumentPlan(KindInvoice, docs, nil, now)
		if _, _, err := applyDocumentPlan(ctx, db, KindInvoice, plan, models.SyncSourceQuickBooks, now); err != nil {
			t.Fatalf("apply #%d: %v", i+1, err)
		}
	}

	var count int64
	if err := db.Model(&models.Invoice{}).Where("external_id = ?", "inv-1").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 invoice row, got %d", count)
	}
}

func TestApplyDocumentPlan_OverrideAssignmentSurvivesSync(t *testing.T) {
	ctx := setupIntegrationDB(t)
	db := config.GetDB()
	now := time.Now()

	projectId := uint(99)
	seed := models.Invoice{
		ExternalId:     "inv-override",
		ClientName:     "Acme Corp",
		Amount:         decimal.NewFromInt(500),
		ProjectId:      &projectId,
		ManualOverride: true,
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	docs := []ExternalDocument{
		{ExternalId: "inv-override", Counterparty: "Acme Corp", Amount: decimal.NewFromInt(500), Balance: decimal.NewFromInt(250)},
	}
	overridden, err := loadOverriddenInvoices(ctx, db)
	if err != nil {
		t.Fatalf("load overridden: %v", err)
	}

	plan := BuildDocumentPlan(KindInvoice, docs, overridden, now)
	if _, _, err := applyDocumentPlan(ctx, db, KindInvoice, plan, models.SyncSourceQuickBooks, now); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var got models.Invoice
	if err := db.Where("external_id = ?", "inv-override").Take(&got).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.ProjectId == nil || *got.ProjectId != projectId {
		t.Fatalf("project assignment lost: %+v", got.ProjectId)
	}
	if !got.ManualOverride {
		t.Fatal("manual_override flag lost")
	}
	if !got.Balance.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("balance not synced: %s", got.Balance)
	}
}

func TestInsertConflicts_DeduplicatesPendingEntries(t *testing.T) {
	ctx := setupIntegrationDB(t)
	db := config.GetDB()

	draft := ConflictDraft{
		EntityType:    models.EntityTypeInvoice,
		EntityId:      7,
		ExternalId:    "inv-7",
		FieldName:     "client_name",
		AppValue:      "Acme Corp",
		ExternalValue: "Acme Holdings",
	}

	for i := 0; i < 2; i++ {
		if _, err := insertConflicts(ctx, db, models.SyncSourceQuickBooks, []ConflictDraft{draft}); err != nil {
			t.Fatalf("insert #%d: %v", i+1, err)
		}
	}

	var count int64
	if err := db.Model(&models.SyncConflict{}).
		Where("entity_id = ? AND field_name = ?", 7, "client_name").
		Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 pending conflict, got %d", count)
	}
}

func TestResolveConflict_KeepExternalWritesEntity(t *testing.T) {
	ctx := setupIntegrationDB(t)
	db := config.GetDB()

	seed := models.Invoice{ExternalId: "inv-resolve", ClientName: "Acme Corp", Amount: decimal.NewFromInt(500)}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed invoice: %v", err)
	}
	conflict := models.SyncConflict{
		Source:        models.SyncSourceQuickBooks,
		EntityType:    models.EntityTypeInvoice,
		EntityId:      seed.ID,
		ExternalId:    "inv-resolve",
		FieldName:     "client_name",
		AppValue:      "Acme Corp",
		ExternalValue: "Acme Holdings",
		Status:        models.ConflictStatusPending,
	}
	if err := db.Create(&conflict).Error; err != nil {
		t.Fatalf("seed conflict: %v", err)
	}

	resolved, err := ResolveConflict(ctx, db, conflict.ID, models.ConflictResolutionKeepExternal)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != models.ConflictStatusResolvedKeepExternal || resolved.ResolvedAt == nil {
		t.Fatalf("resolved conflict = %+v", resolved)
	}

	var got models.Invoice
	if err := db.Where("external_id = ?", "inv-resolve").Take(&got).Error; err != nil {
		t.Fatalf("reload invoice: %v", err)
	}
	if got.ClientName != "Acme Holdings" {
		t.Fatalf("client name = %q, want external value", got.ClientName)
	}
}

func TestResolveConflict_KeepExternalFailureLeavesPending(t *testing.T) {
	ctx := setupIntegrationDB(t)
	db := config.GetDB()

	// Entity is gone; the write must fail and the conflict must stay pending.
	conflict := models.SyncConflict{
		Source:        models.SyncSourceQuickBooks,
		EntityType:    models.EntityTypeInvoice,
		EntityId:      12345,
		ExternalId:    "inv-missing",
		FieldName:     "client_name",
		AppValue:      "Acme Corp",
		ExternalValue: "Acme Holdings",
		Status:        models.ConflictStatusPending,
	}
	if err := db.Create(&conflict).Error; err != nil {
		t.Fatalf("seed conflict: %v", err)
	}

	if _, err := ResolveConflict(ctx, db, conflict.ID, models.ConflictResolutionKeepExternal); err == nil {
		t.Fatal("expected resolve to fail for a missing entity")
	}

	var got models.SyncConflict
	if err := db.Where("id = ?", conflict.ID).Take(&got).Error; err != nil {
		t.Fatalf("reload conflict: %v", err)
	}
	if got.Status != models.ConflictStatusPending {
		t.Fatalf("conflict status = %q, want pending", got.Status)
	}
}

func TestRunAutoMatch_AssignsAboveThresholdOnly(t *testing.T) {
	ctx := setupIntegrationDB(t)
	db := config.GetDB()

	mapping := models.ClientMapping{
		Code:        "CD",
		DisplayName: "Certified Demolition",
		AliasesJSON: models.EncodeAliases([]string{"cert demo"}),
	}
	if err := db.Create(&mapping).Error; err != nil {
		t.Fatalf("seed mapping: %v", err)
	}
	project := models.Project{
		ExternalFolderId: "f-match",
		Code:             "2601007",
		ClientCode:       "CD",
		ClientName:       "Certified Demolition",
		Description:      "PetroCan Kamloops",
		Status:           models.ProjectStatusActive,
	}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}

	strong := models.Invoice{ExternalId: "inv-strong", ClientName: "cert demo", Amount: decimal.NewFromInt(100)}
	weak := models.Invoice{ExternalId: "inv-weak", ClientName: "PetroCan", Amount: decimal.NewFromInt(100)}
	if err := db.Create(&strong).Error; err != nil {
		t.Fatalf("seed strong: %v", err)
	}
	if err := db.Create(&weak).Error; err != nil {
		t.Fatalf("seed weak: %v", err)
	}

	result, err := RunAutoMatch(ctx, db)
	if err != nil {
		t.Fatalf("auto-match: %v", err)
	}
	if result.Matched != 1 || result.Unmatched != 1 {
		t.Fatalf("result = %+v", result)
	}

	var gotStrong, gotWeak models.Invoice
	if err := db.Where("external_id = ?", "inv-strong").Take(&gotStrong).Error; err != nil {
		t.Fatalf("reload strong: %v", err)
	}
	if gotStrong.ProjectId == nil || *gotStrong.ProjectId != project.ID {
		t.Fatal("strong match was not assigned")
	}
	if gotStrong.MatchConfidence == nil || *gotStrong.MatchConfidence != models.MatchConfidenceHigh {
		t.Fatalf("strong match confidence = %v", gotStrong.MatchConfidence)
	}
	if err := db.Where("external_id = ?", "inv-weak").Take(&gotWeak).Error; err != nil {
		t.Fatalf("reload weak: %v", err)
	}
	if gotWeak.ProjectId != nil {
		t.Fatal("description-only match must not be assigned")
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("sitebooks-test-redis-%d", time.Now().UnixNano())
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
	name := fmt.Sprintf("sitebooks-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=sitebooks_test",
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
