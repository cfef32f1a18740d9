package insights

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Juauvitorsm/painel-empresas/pkg/api/client"
	"github.com/Juauvitorsm/painel-empresas/pkg/resource"
	"github.com/Juauvitorsm/painel-empresas/pkg/session"
)

var loggedIn = session.Session{LoggedIn: true, AccessToken: "T1", UserEmail: "a@b.com"}

func fullBackend() map[string]string {
	return map[string]string{
		PathCompanyInsights:  `[{"nome_empresa":"Acme","faturamento_total_anual":12000,"media_nota_empresa":7.5},{"nome_empresa":"Beta","faturamento_total_anual":24000,"media_nota_empresa":9}]`,
		PathDirectorScores:   `[{"diretor_empresa":"Ana","media_nota":6},{"diretor_empresa":"Beto","media_nota":9.25}]`,
		PathWorstDirectors:   `[{"diretor_empresa":"Ana","faturamento_anual":12000}]`,
		PathTopProfit:        `[{"nome_produto":"Caneta","nome_empresa":"Acme","faturamento_total":500}]`,
		PathBestDirectors:    `[]`,
		PathMonthlyByCompany: `[{"nome_empresa":"Acme","faturamento_mensal":1000},{"nome_empresa":"Beta","faturamento_mensal":2000}]`,
	}
}

func newService(t *testing.T, routes map[string]string, fail string) (*Service, *[]string) {
	t.Helper()
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer T1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == fail {
			http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	api, err := client.New(srv.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return NewService(api, nil), &paths
}

func TestDashboardBuildsMetricsAndCharts(t *testing.T) {
	svc, paths := newService(t, fullBackend(), "")
	d, err := svc.Dashboard(context.Background(), loggedIn)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	wantOrder := []string{PathCompanyInsights, PathDirectorScores, PathWorstDirectors, PathTopProfit, PathBestDirectors, PathMonthlyByCompany}
	if strings.Join(*paths, " ") != strings.Join(wantOrder, " ") {
		t.Fatalf("unexpected fetch order %v", *paths)
	}
	if d.NoInsights != "" || len(d.Metrics) != 3 {
		t.Fatalf("expected metrics, got %+v", d)
	}
	if d.Metrics[0].Value != "Beta" || d.Metrics[0].Delta != "R$ 24,000.00" {
		t.Fatalf("unexpected top company %+v", d.Metrics[0])
	}
	if d.Metrics[1].Value != "Beto" || d.Metrics[1].Delta != "Nota: 9.25" {
		t.Fatalf("unexpected best director %+v", d.Metrics[1])
	}
	if d.Metrics[2].Value != "R$ 36,000.00" {
		t.Fatalf("unexpected total %+v", d.Metrics[2])
	}
	if len(d.Charts) != 6 {
		t.Fatalf("expected 6 charts, got %d", len(d.Charts))
	}
	revenue := d.Charts[0]
	if revenue.Bars[0].Percent != 50 || revenue.Bars[1].Percent != 100 {
		t.Fatalf("unexpected bar widths %+v", revenue.Bars)
	}
	if d.Charts[3].Bars[0].Tooltip != "Acme" {
		t.Fatalf("expected company tooltip on profit chart, got %+v", d.Charts[3])
	}
	if d.Charts[4].Empty == "" || len(d.Charts[4].Bars) != 0 {
		t.Fatalf("expected empty best directors chart, got %+v", d.Charts[4])
	}
}

func TestDashboardWithoutInsightsShowsWarning(t *testing.T) {
	routes := fullBackend()
	routes[PathDirectorScores] = `[]`
	svc, _ := newService(t, routes, "")
	d, err := svc.Dashboard(context.Background(), loggedIn)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.NoInsights == "" || len(d.Metrics) != 0 {
		t.Fatalf("expected no-insights warning, got %+v", d)
	}
	if len(d.Charts) != 4 {
		t.Fatalf("expected director and product charts only, got %d", len(d.Charts))
	}
}

func TestDashboardFailsAsAWhole(t *testing.T) {
	svc, paths := newService(t, fullBackend(), PathTopProfit)
	d, err := svc.Dashboard(context.Background(), loggedIn)
	if err == nil {
		t.Fatal("expected failure")
	}
	if len(d.Metrics) != 0 || len(d.Charts) != 0 {
		t.Fatalf("expected empty dashboard, got %+v", d)
	}
	if len(*paths) != 4 {
		t.Fatalf("expected fetching to stop at the failing endpoint, got %v", *paths)
	}
	notice := DashboardNotice(err)
	if notice.Level != resource.LevelWarning {
		t.Fatalf("unexpected notice %+v", notice)
	}
}

func TestDashboardWithoutTokenMakesNoCalls(t *testing.T) {
	svc, paths := newService(t, fullBackend(), "")
	_, err := svc.Dashboard(context.Background(), session.Session{})
	if !client.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized failure, got %v", err)
	}
	if len(*paths) != 0 {
		t.Fatalf("expected no requests, got %v", *paths)
	}
}

func TestListing(t *testing.T) {
	res, _ := resource.Lookup("empresas")
	svc, paths := newService(t, map[string]string{
		"/api/empresas/": `[{"id":1,"nome_empresa":"Acme","diretor_empresa":"Ana"}]`,
	}, "")
	listing, err := svc.Listing(context.Background(), loggedIn, res)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if listing.Empty() || listing.Table.Cell(0, "nome_empresa") != "Acme" {
		t.Fatalf("unexpected listing %+v", listing)
	}
	if (*paths)[0] != "/api/empresas/" {
		t.Fatalf("unexpected path %v", *paths)
	}
}

func TestListingEmptyAndFailure(t *testing.T) {
	empresas, _ := resource.Lookup("empresas")
	faturamento, _ := resource.Lookup("faturamento")
	svc, _ := newService(t, map[string]string{"/api/empresas/": `[]`}, "/api/faturamento/")

	listing, err := svc.Listing(context.Background(), loggedIn, empresas)
	if err != nil || !listing.Empty() {
		t.Fatalf("expected empty listing, got %+v (%v)", listing, err)
	}
	if !strings.Contains(listing.EmptyNotice().Message, "Gerenciar") {
		t.Fatalf("unexpected empty notice %+v", listing.EmptyNotice())
	}

	_, err = svc.Listing(context.Background(), loggedIn, faturamento)
	if err == nil {
		t.Fatal("expected failure")
	}
	notice := ListingNotice(faturamento, err)
	if notice.Level != resource.LevelError || !strings.Contains(notice.Message, "login novamente") {
		t.Fatalf("unexpected notice %+v", notice)
	}
}
