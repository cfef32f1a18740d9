// Package resource describes the CRUD collections exposed by the API as data and
// turns form values into add/update requests for them.
package resource

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownResource is returned by Lookup for names outside the registry.
var ErrUnknownResource = errors.New("resource: unknown resource")

// Kind is the wire type a form value is coerced to.
type Kind int

const (
	String Kind = iota
	Text
	Int
	Float
	Date
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Int:
		return "int"
	case Float:
		return "float"
	case Date:
		return "date"
	default:
		return "string"
	}
}

// Field is one attribute of a resource.
type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	Min      *float64
	Max      *float64
}

// Resource is one API collection served under /api/<Name>/.
type Resource struct {
	Name     string
	Title    string
	Singular string
	Fields   []Field
}

// CollectionPath is the list/create endpoint.
func (r Resource) CollectionPath() string {
	return "/api/" + r.Name + "/"
}

// ItemPath is the update endpoint for id.
func (r Resource) ItemPath(id int) string {
	return fmt.Sprintf("/api/%s/%d", r.Name, id)
}

// Field returns the field called name.
func (r Resource) Field(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func bound(v float64) *float64 { return &v }

var registry = []Resource{
	{
		Name:     "empresas",
		Title:    "Empresas",
		Singular: "Empresa",
		Fields: []Field{
			{Name: "nome_empresa", Label: "Nome da Empresa", Kind: String, Required: true},
			{Name: "diretor_empresa", Label: "Nome do Diretor", Kind: String, Required: true},
		},
	},
	{
		Name:     "detalhes_produtos",
		Title:    "Detalhes Prod.",
		Singular: "Produto",
		Fields: []Field{
			{Name: "id_empresa", Label: "ID da Empresa", Kind: Int, Required: true, Min: bound(1)},
			{Name: "nome_produto", Label: "Nome do Produto", Kind: String, Required: true},
			{Name: "categoria", Label: "Categoria", Kind: String, Required: true},
			{Name: "preco_unitario", Label: "Preço Unitário", Kind: Float, Required: true, Min: bound(0.01)},
			{Name: "margem_lucro_percentual", Label: "Margem de Lucro Percentual", Kind: Float, Required: true, Min: bound(0), Max: bound(100)},
			{Name: "data_lancamento", Label: "Data de Lançamento", Kind: Date, Required: true},
		},
	},
	{
		Name:     "produtos_vendidos",
		Title:    "Prod. Vendidos",
		Singular: "Venda",
		Fields: []Field{
			{Name: "id_empresa", Label: "ID da Empresa", Kind: Int, Required: true, Min: bound(1)},
			{Name: "id_produto", Label: "ID do Produto", Kind: Int, Required: true, Min: bound(1)},
			{Name: "quantidade_vendida", Label: "Quantidade Vendida", Kind: Int, Required: true, Min: bound(1)},
			{Name: "data_venda", Label: "Data da Venda", Kind: Date, Required: true},
		},
	},
	{
		Name:     "avaliacoes",
		Title:    "Avaliações",
		Singular: "Avaliação",
		Fields: []Field{
			{Name: "id_empresa", Label: "ID da Empresa", Kind: Int, Required: true, Min: bound(1)},
			{Name: "nota_diretor", Label: "Nota do Diretor (0 a 10)", Kind: Int, Required: true, Min: bound(0), Max: bound(10)},
			{Name: "nota_geral_empresa", Label: "Nota Geral da Empresa (0 a 10)", Kind: Int, Required: true, Min: bound(0), Max: bound(10)},
			{Name: "comentario", Label: "Comentário", Kind: Text},
		},
	},
	{
		Name:     "faturamento",
		Title:    "Faturamento",
		Singular: "Faturamento",
		Fields: []Field{
			{Name: "id_empresa", Label: "ID da Empresa", Kind: Int, Required: true, Min: bound(1)},
			{Name: "faturamento_mensal", Label: "Faturamento Mensal", Kind: Float, Required: true, Min: bound(0)},
			{Name: "faturamento_anual", Label: "Faturamento Anual", Kind: Float, Required: true, Min: bound(0)},
		},
	},
}

// All returns the registered resources in display order.
func All() []Resource {
	out := make([]Resource, len(registry))
	copy(out, registry)
	return out
}

// Names returns the registered resource names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for _, r := range registry {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

// Lookup finds a resource by name. "produtos" is accepted for detalhes_produtos.
func Lookup(name string) (Resource, error) {
	name = strings.Trim(strings.ToLower(strings.TrimSpace(name)), "/")
	if name == "produtos" {
		name = "detalhes_produtos"
	}
	for _, r := range registry {
		if r.Name == name {
			return r, nil
		}
	}
	return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
}
