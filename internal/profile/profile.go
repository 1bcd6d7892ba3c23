// Package profile loads the portfolio owner's data and renders the page that
// hosts the chat widget.
package profile

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is the portfolio content shown next to the chat.
type Profile struct {
	Name       string       `yaml:"name" json:"name"`
	Title      string       `yaml:"title" json:"title"`
	Email      string       `yaml:"email" json:"email"`
	Location   string       `yaml:"location" json:"location"`
	Avatar     string       `yaml:"avatar" json:"avatar"`
	Social     Social       `yaml:"social" json:"social"`
	Background string       `yaml:"background" json:"background"` // markdown
	Skills     []string     `yaml:"skills" json:"skills"`
	Experience []Experience `yaml:"experience" json:"experience"`
	Projects   []Project    `yaml:"projects" json:"projects"`
	Education  []Education  `yaml:"education" json:"education"`
}

// Social holds profile links.
type Social struct {
	LinkedIn string `yaml:"linkedin" json:"linkedin,omitempty"`
	GitHub   string `yaml:"github" json:"github,omitempty"`
}

type Experience struct {
	Title       string `yaml:"title" json:"title"`
	Company     string `yaml:"company" json:"company"`
	Duration    string `yaml:"duration" json:"duration"`
	Description string `yaml:"description" json:"description"`
}

type Project struct {
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Technologies []string `yaml:"technologies" json:"technologies"`
}

type Education struct {
	Degree string `yaml:"degree" json:"degree"`
	School string `yaml:"school" json:"school"`
	Year   string `yaml:"year" json:"year"`
}

// Default returns placeholder content for a fresh install.
func Default() *Profile {
	return &Profile{
		Name:     "Your Name",
		Title:    "Your Professional Title",
		Email:    "your.email@example.com",
		Location: "Your Location",
		Avatar:   "/static/avatar-placeholder.svg",
		Social: Social{
			LinkedIn: "https://linkedin.com/in/your-profile",
			GitHub:   "https://github.com/your-username",
		},
		Background: "I am a passionate professional with experience in developing innovative solutions. " +
			"I specialize in modern technologies and have a strong background in software development and cloud platforms.",
		Skills: []string{
			"Python", "JavaScript", "TypeScript", "Java", "Machine Learning", "Cloud Computing",
			"DevOps", "AWS", "Docker", "Kubernetes", "Git", "React",
		},
		Experience: []Experience{
			{
				Title:       "Senior Software Engineer",
				Company:     "Tech Company",
				Duration:    "2022 - Present",
				Description: "Lead development initiatives for core products, improving user engagement by 25%.",
			},
			{
				Title:       "Software Engineer",
				Company:     "Innovation Solutions",
				Duration:    "2020 - 2022",
				Description: "Developed web applications and APIs for various business needs.",
			},
			{
				Title:       "Junior Developer",
				Company:     "Startup Inc",
				Duration:    "2019 - 2020",
				Description: "Analyzed business requirements and built software solutions.",
			},
		},
		Projects: []Project{
			{
				Name:         "AI-Powered Chatbot Platform",
				Description:  "Built an intelligent chatbot using NLP and transformer models.",
				Technologies: []string{"Python", "Transformers", "FastAPI", "Docker"},
			},
			{
				Name:         "Cloud-Native Application",
				Description:  "Developed a scalable web application using microservices architecture.",
				Technologies: []string{"Docker", "Kubernetes", "Node.js", "MongoDB"},
			},
			{
				Name:         "Data Analytics Dashboard",
				Description:  "Created a comprehensive analytics dashboard for business intelligence.",
				Technologies: []string{"React", "Python", "Apache Spark", "Redis"},
			},
		},
		Education: []Education{
			{Degree: "Master of Science in Computer Science", School: "University of Technology", Year: "2019"},
			{Degree: "Bachelor of Science in Computer Science", School: "State University", Year: "2017"},
		},
	}
}

// Load reads a YAML profile. An empty path returns Default. Fields missing from
// the file keep their default values.
func Load(path string) (*Profile, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if err := Parse(data, p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes YAML into p. Unknown fields are rejected so typos surface.
func Parse(data []byte, p *Profile) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return err
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
