package template

import "projectportal/internal/model"

func tm(order int, title, description string, days int) model.TemplateMilestone {
	return model.TemplateMilestone{Title: title, Description: description, EstimatedDays: days, Order: order}
}

// Defaults are the system templates seeded on an empty store.
func Defaults() []model.Template {
	return []model.Template{
		{
			Name:        "Web Development Project",
			Description: "Full-stack web application development with frontend, backend, and deployment",
			Category:    model.CategoryWeb,
			Milestones: []model.TemplateMilestone{
				tm(0, "Project Proposal", "Submit project proposal with requirements and design", 7),
				tm(1, "Frontend Development", "Build user interface and components", 14),
				tm(2, "Backend Development", "Develop API and database integration", 14),
				tm(3, "Integration & Testing", "Integrate frontend/backend and perform testing", 10),
				tm(4, "Deployment & Documentation", "Deploy application and complete documentation", 5),
			},
		},
		{
			Name:        "Mobile App Development",
			Description: "Cross-platform or native mobile application development",
			Category:    model.CategoryMobile,
			Milestones: []model.TemplateMilestone{
				tm(0, "Project Proposal", "Submit project proposal with app design and features", 7),
				tm(1, "UI/UX Design", "Create wireframes and design user interface", 10),
				tm(2, "App Development", "Develop mobile app with core features", 18),
				tm(3, "API Integration & Testing", "Integrate backend APIs and test on devices", 10),
				tm(4, "Deployment & Release", "Deploy to app stores and complete documentation", 5),
			},
		},
		{
			Name:        "Research Project",
			Description: "Academic research project with literature review and analysis",
			Category:    model.CategoryResearch,
			Milestones: []model.TemplateMilestone{
				tm(0, "Project Proposal", "Submit research proposal with objectives", 7),
				tm(1, "Literature Review", "Comprehensive literature review of related work", 14),
				tm(2, "Methodology & Data Collection", "Design methodology and collect research data", 14),
				tm(3, "Data Analysis", "Analyze collected data and generate results", 10),
				tm(4, "Paper Writing & Submission", "Write research paper and prepare for submission", 10),
			},
		},
		{
			Name:        "Machine Learning Project",
			Description: "ML/AI project with data processing, model development, and evaluation",
			Category:    model.CategoryML,
			Milestones: []model.TemplateMilestone{
				tm(0, "Project Proposal", "Submit ML project proposal with problem statement", 7),
				tm(1, "Data Collection & Preprocessing", "Collect and preprocess dataset", 12),
				tm(2, "Model Development", "Develop and implement ML model architecture", 15),
				tm(3, "Training & Optimization", "Train model and optimize hyperparameters", 10),
				tm(4, "Evaluation & Deployment", "Evaluate model performance and deploy", 6),
			},
		},
		{
			Name:        "General Project",
			Description: "General project template suitable for any project type",
			Category:    model.CategoryGeneral,
			Milestones: []model.TemplateMilestone{
				tm(0, "Project Proposal", "Submit initial project proposal", 7),
				tm(1, "Planning & Design", "Plan architecture and design system", 10),
				tm(2, "Development", "Develop the project", 20),
				tm(3, "Testing & Documentation", "Test and document the project", 10),
				tm(4, "Final Submission", "Submit final project with presentation", 5),
			},
		},
	}
}
