package insights

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Juauvitorsm/painel-empresas/pkg/api/client"
	"github.com/Juauvitorsm/painel-empresas/pkg/resource"
	"github.com/Juauvitorsm/painel-empresas/pkg/session"
)

// Endpoints read by the insights page, in fetch order.
const (
	PathCompanyInsights  = "/api/insights/"
	PathDirectorScores   = "/api/media_notas_diretor/"
	PathWorstDirectors   = "/api/pioresdiretores/"
	PathTopProfit        = "/api/insights/maior_lucro/"
	PathBestDirectors    = "/api/melhoresdiretores/"
	PathMonthlyByCompany = "/api/faturamento_mensal_por_empresa/"
)

// Fetcher issues authenticated GETs.
type Fetcher interface {
	Get(ctx context.Context, sess session.Session, path string) (client.Response, error)
}

// Service loads listing and insights views.
type Service struct {
	api    Fetcher
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(api Fetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{api: api, logger: logger}
}

// Listing is one resource tab.
type Listing struct {
	Resource resource.Resource
	Table    Table
}

// Empty reports whether the collection has no records.
func (l Listing) Empty() bool { return l.Table.Len() == 0 }

// EmptyNotice is shown instead of an empty table.
func (l Listing) EmptyNotice() resource.Notice {
	if l.Resource.Name == "empresas" {
		return resource.Notice{Level: resource.LevelWarning, Message: "Nenhuma empresa cadastrada. Use a aba 'Gerenciar' para adicionar uma."}
	}
	return resource.Notice{Level: resource.LevelInfo, Message: "Nenhum registro de " + l.Resource.Title + " encontrado."}
}

// Listing fetches GET /api/<resource>/.
func (s *Service) Listing(ctx context.Context, sess session.Session, res resource.Resource) (Listing, error) {
	resp, err := s.api.Get(ctx, sess, res.CollectionPath())
	if err != nil {
		s.logger.Warn("listing failed", "resource", res.Name, "error", err)
		return Listing{Resource: res}, err
	}
	table, err := DecodeTable(resp.Body)
	if err != nil {
		return Listing{Resource: res}, err
	}
	return Listing{Resource: res, Table: table}, nil
}

// ListingNotice renders a listing failure.
func ListingNotice(res resource.Resource, err error) resource.Notice {
	if client.IsConnectionError(err) {
		return resource.Notice{Level: resource.LevelError, Message: "Erro de conexão com a API. Verifique se ela está rodando."}
	}
	return resource.Notice{
		Level:   resource.LevelError,
		Message: "Não foi possível carregar os dados de " + res.Title + ". Tente fazer o login novamente.",
	}
}

type companyInsight struct {
	NomeEmpresa           string  `json:"nome_empresa"`
	FaturamentoTotalAnual float64 `json:"faturamento_total_anual"`
	MediaNotaEmpresa      float64 `json:"media_nota_empresa"`
}

type directorScore struct {
	DiretorEmpresa string  `json:"diretor_empresa"`
	MediaNota      float64 `json:"media_nota"`
}

type directorRevenue struct {
	DiretorEmpresa   string  `json:"diretor_empresa"`
	FaturamentoAnual float64 `json:"faturamento_anual"`
}

type productProfit struct {
	NomeProduto      string  `json:"nome_produto"`
	NomeEmpresa      string  `json:"nome_empresa"`
	FaturamentoTotal float64 `json:"faturamento_total"`
}

type monthlyRevenue struct {
	NomeEmpresa       string  `json:"nome_empresa"`
	FaturamentoMensal float64 `json:"faturamento_mensal"`
}

// Metric is a headline number.
type Metric struct {
	Label string
	Value string
	Delta string
}

// Bar is one column of a bar chart. Percent is relative to the largest bar.
type Bar struct {
	Label   string
	Value   float64
	Display string
	Tooltip string
	Percent float64
}

// Chart is a bar chart or, when it has no bars, the notice shown in its place.
type Chart struct {
	Title  string
	XTitle string
	YTitle string
	Bars   []Bar
	Empty  string
}

// Dashboard is the insights page.
type Dashboard struct {
	Metrics []Metric
	// NoInsights replaces the metrics and per-company charts when either the
	// company insights or the director scores are empty.
	NoInsights string
	Charts     []Chart
}

// Dashboard fetches the six insight endpoints one after the other. Any failure
// fails the whole page.
func (s *Service) Dashboard(ctx context.Context, sess session.Session) (Dashboard, error) {
	var (
		companies []companyInsight
		scores    []directorScore
		worst     []directorRevenue
		profit    []productProfit
		best      []directorRevenue
		monthly   []monthlyRevenue
	)
	fetches := []struct {
		path string
		dst  any
	}{
		{PathCompanyInsights, &companies},
		{PathDirectorScores, &scores},
		{PathWorstDirectors, &worst},
		{PathTopProfit, &profit},
		{PathBestDirectors, &best},
		{PathMonthlyByCompany, &monthly},
	}
	for _, f := range fetches {
		resp, err := s.api.Get(ctx, sess, f.path)
		if err != nil {
			s.logger.Warn("insights fetch failed", "path", f.path, "error", err)
			return Dashboard{}, err
		}
		if err := resp.Decode(f.dst); err != nil {
			s.logger.Warn("insights decode failed", "path", f.path, "error", err)
			return Dashboard{}, err
		}
	}
	return buildDashboard(companies, scores, worst, profit, best, monthly), nil
}

// DashboardNotice renders an insights failure as a single warning.
func DashboardNotice(err error) resource.Notice {
	if client.IsConnectionError(err) {
		return resource.Notice{Level: resource.LevelError, Message: "Erro de conexão com a API. Verifique se ela está rodando."}
	}
	return resource.Notice{Level: resource.LevelWarning, Message: "Não foi possível carregar os insights. Tente fazer o login novamente."}
}

func buildDashboard(companies []companyInsight, scores []directorScore, worst []directorRevenue, profit []productProfit, best []directorRevenue, monthly []monthlyRevenue) Dashboard {
	var d Dashboard
	if len(companies) == 0 || len(scores) == 0 {
		d.NoInsights = "Nenhum insight de empresa disponível."
	} else {
		top := companies[0]
		var total float64
		for _, c := range companies {
			if c.FaturamentoTotalAnual > top.FaturamentoTotalAnual {
				top = c
			}
			total += c.FaturamentoTotalAnual
		}
		ranked := append([]directorScore(nil), scores...)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].MediaNota > ranked[j].MediaNota })
		d.Metrics = []Metric{
			{Label: "Empresa com Maior Faturamento Anual", Value: top.NomeEmpresa, Delta: Money(top.FaturamentoTotalAnual)},
			{Label: "Melhor Diretor (por Nota)", Value: ranked[0].DiretorEmpresa, Delta: "Nota: " + Score(ranked[0].MediaNota)},
			{Label: "Faturamento Anual Total (Todas Empresas)", Value: Money(total)},
		}

		revenue := Chart{Title: "Faturamento Total Anual por Empresa", XTitle: "Empresa", YTitle: "Faturamento Anual (R$)"}
		grades := Chart{Title: "Média da Nota por Empresa", XTitle: "Empresa", YTitle: "Média da Nota"}
		for _, c := range companies {
			revenue.Bars = append(revenue.Bars, Bar{Label: c.NomeEmpresa, Value: c.FaturamentoTotalAnual, Display: Money(c.FaturamentoTotalAnual)})
			grades.Bars = append(grades.Bars, Bar{Label: c.NomeEmpresa, Value: c.MediaNotaEmpresa, Display: Score(c.MediaNotaEmpresa)})
		}
		d.Charts = append(d.Charts, revenue, grades)
	}

	d.Charts = append(d.Charts,
		directorChart("Piores Diretores (Pelo Faturamento)", worst, "Nenhum dado de piores diretores disponível."),
		profitChart(profit),
		directorChart("Melhores Diretores (Pelo Faturamento)", best, "Nenhum dado de melhores diretores disponível."),
		monthlyChart(monthly),
	)
	for i := range d.Charts {
		scale(d.Charts[i].Bars)
	}
	return d
}

func directorChart(title string, rows []directorRevenue, empty string) Chart {
	c := Chart{Title: title, XTitle: "Diretor", YTitle: "Faturamento Anual (R$)"}
	for _, r := range rows {
		c.Bars = append(c.Bars, Bar{Label: r.DiretorEmpresa, Value: r.FaturamentoAnual, Display: Money(r.FaturamentoAnual)})
	}
	if len(c.Bars) == 0 {
		c.Empty = empty
	}
	return c
}

func profitChart(rows []productProfit) Chart {
	c := Chart{Title: "Produtos de Maior Lucro", XTitle: "Produto", YTitle: "Faturamento Total (R$)"}
	for _, r := range rows {
		c.Bars = append(c.Bars, Bar{Label: r.NomeProduto, Value: r.FaturamentoTotal, Display: Money(r.FaturamentoTotal), Tooltip: r.NomeEmpresa})
	}
	if len(c.Bars) == 0 {
		c.Empty = "Nenhum dado de maior lucro disponível."
	}
	return c
}

func monthlyChart(rows []monthlyRevenue) Chart {
	c := Chart{Title: "Faturamento Mensal por Empresa", XTitle: "Empresa", YTitle: "Faturamento Mensal (R$)"}
	for _, r := range rows {
		c.Bars = append(c.Bars, Bar{Label: r.NomeEmpresa, Value: r.FaturamentoMensal, Display: Money(r.FaturamentoMensal)})
	}
	if len(c.Bars) == 0 {
		c.Empty = "Nenhum dado de faturamento mensal disponível."
	}
	return c
}

func scale(bars []Bar) {
	var peak float64
	for _, b := range bars {
		if b.Value > peak {
			peak = b.Value
		}
	}
	if peak <= 0 {
		return
	}
	for i := range bars {
		if bars[i].Value > 0 {
			bars[i].Percent = bars[i].Value / peak * 100
		}
	}
}
