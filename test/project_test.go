package test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"questboard/internal/config"
)

func futureDate() string {
	return time.Now().Add(48 * time.Hour).Format("2006-01-02 15:04:05")
}

func TestCreateProject(t *testing.T) {
	app := CreateTestApp()
	token, _ := CreateTestUser(t, "owner")

	code, result := DoJSON(t, app, "POST", "/api/v1/projects", token, map[string]interface{}{
		"title":         "Launch Site",
		"description":   "Ship v1",
		"due_date":      futureDate(),
		"difficulty_id": DifficultyID(t, "Normal"),
		"is_public":     "false",
	})
	if code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", code, result)
	}
	data := result["data"].(map[string]interface{})
	if data["is_finished"].(bool) {
		t.Errorf("Expected new project to be unfinished")
	}
	if data["is_public"].(bool) {
		t.Errorf("Expected is_public=false")
	}
	// Normal multiplier is 1, so health starts at the base
	if health := data["health"].(float64); health != 550 {
		t.Errorf("Expected health 550, got %v", health)
	}
	projectID := data["id"].(string)

	// The salt is generated but never rendered to clients
	if _, ok := data["salt"]; ok {
		t.Errorf("Expected salt to be omitted from the response")
	}
	var salt string
	if err := config.DB.QueryRow("SELECT salt FROM projects WHERE id = $1", projectID).Scan(&salt); err != nil {
		t.Fatalf("Error fetching salt: %v", err)
	}
	if len(strings.TrimSpace(salt)) != 12 {
		t.Errorf("Expected 12-character salt, got %q", salt)
	}
}

func TestCreateProjectVisibilityCoercion(t *testing.T) {
	app := CreateTestApp()
	token, _ := CreateTestUser(t, "coercer")

	// A JSON boolean is the natural wire form
	code, result := DoJSON(t, app, "POST", "/api/v1/projects", token, map[string]interface{}{
		"title":         "Bool visibility",
		"description":   "public quest",
		"due_date":      futureDate(),
		"difficulty_id": DifficultyID(t, "Easy"),
		"is_public":     true,
	})
	if code != http.StatusCreated {
		t.Fatalf("Expected 201 for boolean is_public, got %d: %v", code, result)
	}
	if !result["data"].(map[string]interface{})["is_public"].(bool) {
		t.Errorf("Expected is_public=true")
	}

	// Omitting the field defaults to private
	code, result = DoJSON(t, app, "POST", "/api/v1/projects", token, map[string]interface{}{
		"title":         "Default visibility",
		"description":   "private quest",
		"due_date":      futureDate(),
		"difficulty_id": DifficultyID(t, "Easy"),
	})
	if code != http.StatusCreated {
		t.Fatalf("Expected 201 without is_public, got %d: %v", code, result)
	}
	if result["data"].(map[string]interface{})["is_public"].(bool) {
		t.Errorf("Expected is_public to default to false")
	}
}

func TestCreateProjectSaltsAreUnique(t *testing.T) {
	app := CreateTestApp()
	token, _ := CreateTestUser(t, "saltuser")

	a := CreateTestProject(t, app, token, "Salt A", "Easy")
	b := CreateTestProject(t, app, token, "Salt B", "Easy")

	var saltA, saltB string
	if err := config.DB.QueryRow("SELECT salt FROM projects WHERE id = $1", a).Scan(&saltA); err != nil {
		t.Fatalf("Error fetching salt: %v", err)
	}
	if err := config.DB.QueryRow("SELECT salt FROM projects WHERE id = $1", b).Scan(&saltB); err != nil {
		t.Fatalf("Error fetching salt: %v", err)
	}
	if saltA == saltB {
		t.Errorf("Expected distinct salts, both were %q", saltA)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	app := CreateTestApp()
	token, _ := CreateTestUser(t, "validator")

	base := func() map[string]interface{} {
		return map[string]interface{}{
			"title":         "A valid title",
			"description":   "something",
			"due_date":      futureDate(),
			"difficulty_id": DifficultyID(t, "Easy"),
			"is_public":     "false",
		}
	}

	cases := []struct {
		name  string
		patch func(m map[string]interface{})
		field string
	}{
		{"title too long", func(m map[string]interface{}) { m["title"] = strings.Repeat("x", 151) }, "title"},
		{"empty description", func(m map[string]interface{}) { m["description"] = "" }, "description"},
		{"past due date", func(m map[string]interface{}) { m["due_date"] = "2020-01-01 00:00:00" }, "due_date"},
		{"unknown difficulty", func(m map[string]interface{}) { m["difficulty_id"] = 99999 }, "difficulty_id"},
		{"is_public not boolean", func(m map[string]interface{}) { m["is_public"] = "yes" }, "is_public"},
	}

	for _, tc := range cases {
		body := base()
		tc.patch(body)
		code, result := DoJSON(t, app, "POST", "/api/v1/projects", token, body)
		if code != http.StatusUnprocessableEntity {
			t.Errorf("%s: expected 422, got %d: %v", tc.name, code, result)
			continue
		}
		errs, ok := result["errors"].(map[string]interface{})
		if !ok {
			t.Errorf("%s: expected field errors map, got %v", tc.name, result)
			continue
		}
		if _, ok := errs[tc.field]; !ok {
			t.Errorf("%s: expected error on %q, got %v", tc.name, tc.field, errs)
		}
	}
}

func TestUpdateProjectOwnership(t *testing.T) {
	app := CreateTestApp()
	ownerToken, _ := CreateTestUser(t, "updowner")
	strangerToken, _ := CreateTestUser(t, "updstranger")

	projectID := CreateTestProject(t, app, ownerToken, "Guarded", "Normal")

	body := map[string]interface{}{
		"title":       "Renamed",
		"description": "still mine",
		"due_date":    futureDate(),
		"is_public":   "true",
	}

	code, _ := DoJSON(t, app, "PUT", "/api/v1/projects/"+projectID, strangerToken, body)
	if code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-owner update, got %d", code)
	}

	code, result := DoJSON(t, app, "PUT", "/api/v1/projects/"+projectID, ownerToken, body)
	if code != http.StatusOK {
		t.Fatalf("Expected 200 for owner update, got %d: %v", code, result)
	}
	data := result["data"].(map[string]interface{})
	if data["title"].(string) != "Renamed" {
		t.Errorf("Expected updated title, got %v", data["title"])
	}
	if !data["is_public"].(bool) {
		t.Errorf("Expected is_public=true after update")
	}
}

func TestMarkProjectDoneIsIdempotent(t *testing.T) {
	app := CreateTestApp()
	token, _ := CreateTestUser(t, "finisher")
	projectID := CreateTestProject(t, app, token, "Almost done", "Easy")

	for i := 0; i < 2; i++ {
		code, result := DoJSON(t, app, "POST", "/api/v1/projects/"+projectID+"/mark_done", token, nil)
		if code != http.StatusOK {
			t.Fatalf("mark_done call %d: expected 200, got %d: %v", i+1, code, result)
		}
	}

	var finished bool
	if err := config.DB.QueryRow("SELECT is_finished FROM projects WHERE id = $1", projectID).Scan(&finished); err != nil {
		t.Fatalf("Error fetching project: %v", err)
	}
	if !finished {
		t.Errorf("Expected is_finished=true")
	}
}

func TestMarkProjectDoneRequiresOwner(t *testing.T) {
	app := CreateTestApp()
	ownerToken, _ := CreateTestUser(t, "mdowner")
	strangerToken, _ := CreateTestUser(t, "mdstranger")
	projectID := CreateTestProject(t, app, ownerToken, "Not yours", "Easy")

	code, _ := DoJSON(t, app, "POST", "/api/v1/projects/"+projectID+"/mark_done", strangerToken, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", code)
	}
}

func TestDeleteProjectByNonOwnerLeavesEverything(t *testing.T) {
	app := CreateTestApp()
	ownerToken, ownerID := CreateTestUser(t, "delowner")
	strangerToken, _ := CreateTestUser(t, "delstranger")

	projectID := CreateTestProject(t, app, ownerToken, "Keep out", "Normal")

	code, result := DoJSON(t, app, "POST", "/api/v1/projects/"+projectID+"/tasks", ownerToken, map[string]interface{}{
		"assignee_id": ownerID,
		"title":       "Survivor",
		"description": "should not be deleted",
		"exp":         10,
		"due_date":    futureDate(),
	})
	if code != http.StatusCreated {
		t.Fatalf("Expected 201 creating task, got %d: %v", code, result)
	}

	code, _ = DoJSON(t, app, "DELETE", "/api/v1/projects/"+projectID, strangerToken, nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected 403 for non-owner delete, got %d", code)
	}

	var projects, tasks int
	config.DB.QueryRow("SELECT COUNT(*) FROM projects WHERE id = $1", projectID).Scan(&projects)
	config.DB.QueryRow("SELECT COUNT(*) FROM tasks WHERE project_id = $1", projectID).Scan(&tasks)
	if projects != 1 || tasks != 1 {
		t.Errorf("Expected project and task untouched, got projects=%d tasks=%d", projects, tasks)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	app := CreateTestApp()
	ownerToken, ownerID := CreateTestUser(t, "cascowner")
	_, collaboratorID := CreateTestUser(t, "casccollab")

	projectID := CreateTestProject(t, app, ownerToken, "Doomed", "Normal")

	code, _ := DoJSON(t, app, "POST", "/api/v1/projects/"+projectID+"/collaborators", ownerToken, map[string]interface{}{
		"user_id": collaboratorID,
	})
	if code != http.StatusCreated {
		t.Fatalf("Expected 201 inviting collaborator, got %d", code)
	}
	code, _ = DoJSON(t, app, "POST", "/api/v1/projects/"+projectID+"/tasks", ownerToken, map[string]interface{}{
		"assignee_id": ownerID,
		"title":       "Doomed task",
		"description": "goes with the ship",
		"exp":         5,
		"due_date":    futureDate(),
	})
	if code != http.StatusCreated {
		t.Fatalf("Expected 201 creating task, got %d", code)
	}

	code, _ = DoJSON(t, app, "DELETE", "/api/v1/projects/"+projectID, ownerToken, nil)
	if code != http.StatusOK {
		t.Fatalf("Expected 200 deleting project, got %d", code)
	}

	counts := map[string]string{
		"projects":            "SELECT COUNT(*) FROM projects WHERE id = $1",
		"tasks":               "SELECT COUNT(*) FROM tasks WHERE project_id = $1",
		"project_attachments": "SELECT COUNT(*) FROM project_attachments WHERE project_id = $1",
		"project_user":        "SELECT COUNT(*) FROM project_user WHERE project_id = $1",
	}
	for table, query := range counts {
		var n int
		if err := config.DB.QueryRow(query, projectID).Scan(&n); err != nil {
			t.Fatalf("Error counting %s: %v", table, err)
		}
		if n != 0 {
			t.Errorf("Expected no orphaned rows in %s, found %d", table, n)
		}
	}
}

func TestListProjectsUnionsOwnedAndShared(t *testing.T) {
	app := CreateTestApp()
	ownerToken, _ := CreateTestUser(t, "listowner")
	collabToken, collabID := CreateTestUser(t, "listcollab")

	ownedByCollab := CreateTestProject(t, app, collabToken, "Own project", "Easy")
	shared := CreateTestProject(t, app, ownerToken, "Shared project", "Easy")

	code, _ := DoJSON(t, app, "POST", "/api/v1/projects/"+shared+"/collaborators", ownerToken, map[string]interface{}{
		"user_id": collabID,
	})
	if code != http.StatusCreated {
		t.Fatalf("Expected 201 inviting collaborator, got %d", code)
	}

	code, result := DoJSON(t, app, "GET", "/api/v1/projects/", collabToken, nil)
	if code != http.StatusOK {
		t.Fatalf("Expected 200 listing projects, got %d", code)
	}
	ids := map[string]int{}
	for _, item := range result["data"].([]interface{}) {
		p := item.(map[string]interface{})
		ids[p["id"].(string)]++
	}
	if ids[ownedByCollab] != 1 {
		t.Errorf("Expected owned project exactly once, got %d", ids[ownedByCollab])
	}
	if ids[shared] != 1 {
		t.Errorf("Expected shared project exactly once, got %d", ids[shared])
	}
}

func TestShareLinkRoundTrip(t *testing.T) {
	app := CreateTestApp()
	token, _ := CreateTestUser(t, "sharer")

	due := futureDate()
	code, result := DoJSON(t, app, "POST", "/api/v1/projects", token, map[string]interface{}{
		"title":         "Public quest",
		"description":   "open to all",
		"due_date":      due,
		"difficulty_id": DifficultyID(t, "Easy"),
		"is_public":     "true",
	})
	if code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", code, result)
	}
	projectID := result["data"].(map[string]interface{})["id"].(string)

	code, result = DoJSON(t, app, "GET", "/api/v1/projects/"+projectID+"/share", token, nil)
	if code != http.StatusOK {
		t.Fatalf("Expected 200 generating share link, got %d: %v", code, result)
	}
	url := result["data"].(map[string]interface{})["url"].(string)

	// The signed link resolves without a session
	code, result = DoJSON(t, app, "GET", url, "", nil)
	if code != http.StatusOK {
		t.Fatalf("Expected 200 resolving share link, got %d: %v", code, result)
	}

	// A tampered signature does not
	code, _ = DoJSON(t, app, "GET", "/api/v1/shared/"+projectID+"?sig=bogus", "", nil)
	if code != http.StatusForbidden {
		t.Errorf("Expected 403 for bad signature, got %d", code)
	}
}
