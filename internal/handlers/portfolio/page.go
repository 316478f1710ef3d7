package handlers_portfolio

import (
	"html/template"
	"portfolio/internal/models/pfconfig"
	"portfolio/internal/models/pfimages"
	"portfolio/internal/models/pfmarkdown"
	"strings"
)

type Job struct {
	Title   string
	Company string
	Period  string
	Bullets template.HTML
}

type Project struct {
	Title   template.HTML
	Tech    string
	Bullets template.HTML
	Repo    string
}

// Page contient le contenu du portfolio déjà converti en HTML
type Page struct {
	Title       string
	Description string
	Name        string
	Headline    string
	Email       string
	LinkedIn    string
	GitHub      string
	HasPhoto    bool
	HasResume   bool
	Summary     template.HTML
	Skills      []template.HTML
	Jobs        []Job
	Projects    []Project
	Footer      template.HTML
	ThemeCSS    template.CSS
}

func NewPage(profile pfconfig.ProfileConfig) Page {
	page := Page{
		Title:       profile.Title,
		Description: pfmarkdown.Plain(profile.Summary, 160),
		Name:        profile.Name,
		Headline:    profile.Headline,
		Email:       profile.Email,
		LinkedIn:    profile.LinkedIn,
		GitHub:      profile.GitHub,
		HasPhoto:    profile.Photo != "",
		HasResume:   profile.Resume != "",
		Summary:     pfmarkdown.ToHTML(profile.Summary),
		Footer:      pfmarkdown.Inline(profile.Footer),
		ThemeCSS:    template.CSS(pfimages.ThemeCSS(profile.Theme)),
	}

	for _, skills := range profile.Skills {
		page.Skills = append(page.Skills, pfmarkdown.ToHTML(skills))
	}

	for _, job := range profile.Jobs {
		page.Jobs = append(page.Jobs, Job{
			Title:   job.Title,
			Company: job.Company,
			Period:  job.Period,
			Bullets: pfmarkdown.ToHTML(job.Bullets),
		})
	}

	for _, project := range profile.Projects {
		title := strings.TrimSpace(project.Icon + " " + project.Title)
		page.Projects = append(page.Projects, Project{
			Title:   pfmarkdown.Inline(title),
			Tech:    project.Tech,
			Bullets: pfmarkdown.ToHTML(project.Bullets),
			Repo:    project.Repo,
		})
	}

	return page
}
