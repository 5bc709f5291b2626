package localstore

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/promptdeck/promptdeck/internal/model"
)

// Shape validation mirrors what the remote store guarantees: non-empty ids
// and names, array-typed prompt lists and a real creation timestamp on every
// prompt. It runs on every write so malformed data never reaches disk.

func validateState(state *persistedState) error {
	if err := validateFolders(state.Folders); err != nil {
		return err
	}
	if err := validateSubscribedFolders(state.SubscribedFolders); err != nil {
		return err
	}
	return validateQuickAccessFolders(state.QuickAccessFolders)
}

func validateFolders(folders []model.Folder) error {
	for i, folder := range folders {
		if err := validateFolder(folder); err != nil {
			return fmt.Errorf("folder %d: %w", i, err)
		}
	}
	return nil
}

func validateFolder(folder model.Folder) error {
	err := validation.ValidateStruct(&folder,
		validation.Field(&folder.ID, validation.Required),
		validation.Field(&folder.Name, validation.Required),
		validation.Field(&folder.Position, validation.Min(0)),
	)
	if err != nil {
		return err
	}
	if folder.Prompts == nil {
		return fmt.Errorf("prompts: must be an array")
	}
	for i, prompt := range folder.Prompts {
		if err := validatePrompt(prompt); err != nil {
			return fmt.Errorf("prompt %d: %w", i, err)
		}
	}
	return nil
}

func validatePrompt(prompt model.Prompt) error {
	return validation.ValidateStruct(&prompt,
		validation.Field(&prompt.ID, validation.Required),
		validation.Field(&prompt.Title, validation.Required),
		validation.Field(&prompt.Text, validation.Required),
		validation.Field(&prompt.Position, validation.Min(0)),
		validation.Field(&prompt.CreatedAt, validation.Required),
	)
}

func validateSubscribedFolders(folders []model.SubscribedFolder) error {
	for i, folder := range folders {
		err := validation.ValidateStruct(&folder,
			validation.Field(&folder.ID, validation.Required),
			validation.Field(&folder.Name, validation.Required),
		)
		if err != nil {
			return fmt.Errorf("subscribed folder %d: %w", i, err)
		}
		if folder.Prompts == nil {
			return fmt.Errorf("subscribed folder %d: prompts: must be an array", i)
		}
		for j, prompt := range folder.Prompts {
			if err := validatePrompt(prompt); err != nil {
				return fmt.Errorf("subscribed folder %d: prompt %d: %w", i, j, err)
			}
		}
	}
	return nil
}

func validateQuickAccessFolders(folders []model.QuickAccessFolder) error {
	for i, folder := range folders {
		err := validation.ValidateStruct(&folder,
			validation.Field(&folder.ID, validation.Required),
			validation.Field(&folder.Name, validation.Required),
			validation.Field(&folder.Position, validation.Min(0)),
		)
		if err != nil {
			return fmt.Errorf("quick-access folder %d: %w", i, err)
		}
		if folder.Items == nil {
			return fmt.Errorf("quick-access folder %d: items: must be an array", i)
		}
		for j, item := range folder.Items {
			err := validation.ValidateStruct(&item,
				validation.Field(&item.ID, validation.Required),
				validation.Field(&item.PromptID, validation.Required),
				validation.Field(&item.Title, validation.Required),
				validation.Field(&item.Position, validation.Min(0)),
				validation.Field(&item.SourceType, validation.Required, validation.In(model.SourceOwned, model.SourceSubscribed)),
			)
			if err != nil {
				return fmt.Errorf("quick-access folder %d: item %d: %w", i, j, err)
			}
		}
	}
	return nil
}
