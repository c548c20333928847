package events

// Document events carry only identifiers and primitive payload; the document
// store itself lives outside this module.

// DocumentCreated records a new document.
type DocumentCreated struct {
	Base
	title   string
	ownerID string
	tags    []string
}

func NewDocumentCreated(documentID, title, ownerID string, tags []string) DocumentCreated {
	return DocumentCreated{
		Base:    newBase(TypeDocumentCreated, AggregateDocument, documentID),
		title:   title,
		ownerID: ownerID,
		tags:    stringSet(tags),
	}
}

func (e DocumentCreated) EventData() map[string]any {
	return map[string]any{
		"documentId": e.AggregateID(),
		"title":      e.title,
		"ownerId":    e.ownerID,
		"tags":       cloneStrings(e.tags),
	}
}

// DocumentUpdated records a content or metadata change.
type DocumentUpdated struct {
	Base
	revision      int64
	changedFields []string
	updatedBy     string
}

func NewDocumentUpdated(documentID string, revision int64, changedFields []string, updatedBy string) DocumentUpdated {
	return DocumentUpdated{
		Base:          newBase(TypeDocumentUpdated, AggregateDocument, documentID),
		revision:      revision,
		changedFields: stringSet(changedFields),
		updatedBy:     updatedBy,
	}
}

func (e DocumentUpdated) EventData() map[string]any {
	return map[string]any{
		"documentId":    e.AggregateID(),
		"revision":      e.revision,
		"changedFields": cloneStrings(e.changedFields),
		"updatedBy":     e.updatedBy,
	}
}

// DocumentPublished records a revision becoming public.
type DocumentPublished struct {
	Base
	revision    int64
	publishedBy string
}

func NewDocumentPublished(documentID string, revision int64, publishedBy string) DocumentPublished {
	return DocumentPublished{
		Base:        newBase(TypeDocumentPublished, AggregateDocument, documentID),
		revision:    revision,
		publishedBy: publishedBy,
	}
}

func (e DocumentPublished) EventData() map[string]any {
	return map[string]any{
		"documentId":  e.AggregateID(),
		"revision":    e.revision,
		"publishedBy": e.publishedBy,
	}
}

// DocumentArchived records a document moving to the read-only archive.
type DocumentArchived struct {
	Base
	archivedBy string
	reason     string
}

func NewDocumentArchived(documentID, archivedBy, reason string) DocumentArchived {
	return DocumentArchived{
		Base:       newBase(TypeDocumentArchived, AggregateDocument, documentID),
		archivedBy: archivedBy,
		reason:     reason,
	}
}

func (e DocumentArchived) EventData() map[string]any {
	return map[string]any{
		"documentId": e.AggregateID(),
		"archivedBy": e.archivedBy,
		"reason":     e.reason,
	}
}

// DocumentCollaboratorAdded records a user gaining access to a document.
type DocumentCollaboratorAdded struct {
	Base
	collaboratorID string
	permission     string
	addedBy        string
}

func NewDocumentCollaboratorAdded(documentID, collaboratorID, permission, addedBy string) DocumentCollaboratorAdded {
	return DocumentCollaboratorAdded{
		Base:           newBase(TypeDocumentCollaboratorAdded, AggregateDocument, documentID),
		collaboratorID: collaboratorID,
		permission:     permission,
		addedBy:        addedBy,
	}
}

func (e DocumentCollaboratorAdded) EventData() map[string]any {
	return map[string]any{
		"documentId":     e.AggregateID(),
		"collaboratorId": e.collaboratorID,
		"permission":     e.permission,
		"addedBy":        e.addedBy,
	}
}
